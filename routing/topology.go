package routing

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// TopoLink is one physical link of the emulated network: a cost and the
// two routers it joins.
type TopoLink struct {
	ID   int32
	Cost int32
	A    int32
	B    int32
}

// Topology is the emulator's ground truth, read from a JSON file of the
// shape {"links": {"<link_id>": [["<u>", "<v>"], "<cost>"]}}.
type Topology struct {
	Links map[int32]TopoLink
}

// ParseTopology decodes and validates a topology description.
func ParseTopology(buf []byte) (*Topology, error) {
	var raw struct {
		Links map[string][]json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrap(err, "parse topology")
	}
	if len(raw.Links) == 0 {
		return nil, errors.New("topology has no links; at least one link between two routers is required")
	}

	t := &Topology{Links: map[int32]TopoLink{}}
	for key, val := range raw.Links {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.Wrapf(err, "link id %q", key)
		}
		if len(val) != 2 {
			return nil, errors.Errorf("link %s: want [[u, v], cost]", key)
		}
		var pair [2]string
		if err := json.Unmarshal(val[0], &pair); err != nil {
			return nil, errors.Wrapf(err, "link %s endpoints", key)
		}
		var costStr string
		if err := json.Unmarshal(val[1], &costStr); err != nil {
			return nil, errors.Wrapf(err, "link %s cost", key)
		}
		u, err := strconv.Atoi(pair[0])
		if err != nil {
			return nil, errors.Wrapf(err, "link %s endpoint %q", key, pair[0])
		}
		v, err := strconv.Atoi(pair[1])
		if err != nil {
			return nil, errors.Wrapf(err, "link %s endpoint %q", key, pair[1])
		}
		cost, err := strconv.Atoi(costStr)
		if err != nil {
			return nil, errors.Wrapf(err, "link %s cost %q", key, costStr)
		}
		if _, dup := t.Links[int32(id)]; dup {
			return nil, errors.Errorf("duplicate link id %d", id)
		}
		t.Links[int32(id)] = TopoLink{ID: int32(id), Cost: int32(cost), A: int32(u), B: int32(v)}
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) validate() error {
	// No self connections.
	for _, l := range t.Links {
		if l.A == l.B {
			return errors.Errorf("router %d connects to itself on link %d", l.A, l.ID)
		}
	}

	// At most one link per router pair.
	seen := map[[2]int32]int32{}
	for _, l := range t.Links {
		pair := [2]int32{l.A, l.B}
		if pair[0] > pair[1] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if other, ok := seen[pair]; ok {
			return errors.Errorf("links %d and %d both join routers %d and %d", other, l.ID, pair[0], pair[1])
		}
		seen[pair] = l.ID
	}

	// Every router reachable from any other.
	routers := t.Routers()
	adj := map[int32][]int32{}
	for _, l := range t.Links {
		adj[l.A] = append(adj[l.A], l.B)
		adj[l.B] = append(adj[l.B], l.A)
	}
	visited := map[int32]bool{routers[0]: true}
	stack := []int32{routers[0]}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range adj[u] {
			if !visited[v] {
				visited[v] = true
				stack = append(stack, v)
			}
		}
	}
	if len(visited) != len(routers) {
		return errors.New("the network is partitioned; every router must be reachable from every other")
	}
	return nil
}

// Routers returns the sorted set of router ids appearing in the topology.
func (t *Topology) Routers() []int32 {
	set := map[int32]struct{}{}
	for _, l := range t.Links {
		set[l.A] = struct{}{}
		set[l.B] = struct{}{}
	}
	out := make([]int32, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CircuitDB builds the INIT reply for one router: its incident links.
func (t *Topology) CircuitDB(routerID int32) *CircuitDB {
	db := &CircuitDB{}
	for _, l := range t.Links {
		if l.A == routerID || l.B == routerID {
			db.Links = append(db.Links, Link{ID: l.ID, Cost: l.Cost})
		}
	}
	sort.Slice(db.Links, func(i, j int) bool { return db.Links[i].ID < db.Links[j].ID })
	return db
}

// PeerAcross names the router on the far side of the given link from
// routerID. It reports false when the link does not touch routerID.
func (t *Topology) PeerAcross(routerID, linkID int32) (int32, bool) {
	l, ok := t.Links[linkID]
	if !ok {
		return 0, false
	}
	switch routerID {
	case l.A:
		return l.B, true
	case l.B:
		return l.A, true
	}
	return 0, false
}
