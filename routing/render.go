package routing

import (
	"fmt"
	"sort"
	"strings"
)

// renderTopology lists every directed edge, both directions, sorted by
// (u, v).
func renderTopology(g graph) string {
	var b strings.Builder
	b.WriteString("TOPOLOGY")

	us := make([]int32, 0, len(g))
	for u := range g {
		us = append(us, u)
	}
	sort.Slice(us, func(i, j int) bool { return us[i] < us[j] })

	for _, u := range us {
		vs := make([]int32, 0, len(g[u]))
		for v := range g[u] {
			vs = append(vs, v)
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
		for _, v := range vs {
			e := g[u][v]
			fmt.Fprintf(&b, "\nrouter:%d,router:%d,linkid:%d,cost:%d", u, v, e.link, e.cost)
		}
	}
	return b.String()
}

// renderRouting lists one line per destination, sorted by destination:
// <dest>:<next_hop>,<total_cost>.
func renderRouting(table map[int32]route) string {
	var b strings.Builder
	b.WriteString("ROUTING")

	dests := make([]int32, 0, len(table))
	for d := range table {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	for _, d := range dests {
		rt := table[d]
		fmt.Fprintf(&b, "\n%d:%d,%d", d, rt.nextHop, rt.cost)
	}
	return b.String()
}
