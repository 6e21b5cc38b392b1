package routing

import "container/heap"

// edge labels one direction of a link in the topology graph.
type edge struct {
	link int32
	cost int32
}

// graph is the undirected topology on router ids, kept symmetric.
type graph map[int32]map[int32]edge

func (g graph) addEdge(u, v, link, cost int32) {
	if u == v {
		return
	}
	if g[u] == nil {
		g[u] = map[int32]edge{}
	}
	if g[v] == nil {
		g[v] = map[int32]edge{}
	}
	g[u][v] = edge{link: link, cost: cost}
	g[v][u] = edge{link: link, cost: cost}
}

type spItem struct {
	id   int32
	cost int64
}

// spQueue is a min-heap on tentative cost; ties break on the lower router
// id so the pop order, and with it the routing table, is deterministic.
type spQueue []spItem

func (q spQueue) Len() int { return len(q) }
func (q spQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].id < q[j].id
}
func (q spQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *spQueue) Push(x interface{}) { *q = append(*q, x.(spItem)) }
func (q *spQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// shortestPaths runs lazy Dijkstra from src over the whole graph. It
// returns the settled costs and the parent pointers; vertices missing from
// dist are unreachable.
func shortestPaths(g graph, src int32) (map[int32]int64, map[int32]int32) {
	dist := map[int32]int64{src: 0}
	parent := map[int32]int32{}
	done := map[int32]bool{}

	q := &spQueue{{id: src, cost: 0}}
	for q.Len() > 0 {
		it := heap.Pop(q).(spItem)
		if done[it.id] {
			continue
		}
		done[it.id] = true
		for v, e := range g[it.id] {
			nc := it.cost + int64(e.cost)
			if d, ok := dist[v]; !ok || nc < d {
				dist[v] = nc
				parent[v] = it.id
				heap.Push(q, spItem{id: v, cost: nc})
			}
		}
	}
	return dist, parent
}

// nextHop walks the parent chain from target back toward src and returns
// the vertex adjacent to src. It reports false when the chain never
// reaches src, which happens for unreachable targets.
func nextHop(parent map[int32]int32, src, target int32) (int32, bool) {
	cur := target
	for {
		p, ok := parent[cur]
		if !ok {
			return 0, false
		}
		if p == src {
			return cur, true
		}
		cur = p
	}
}
