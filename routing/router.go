package routing

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"netlab/utils"
)

// route is one routing table entry.
type route struct {
	cost    int64
	nextHop int32
}

// VirtualRouter discovers the topology by flooding LSAs through the
// emulator, keeps a topology database and recomputes shortest paths after
// every new advertisement. Single threaded: each LSA is handled atomically
// by the receive loop.
type VirtualRouter struct {
	emuAddr *net.UDPAddr
	id      int32

	sock *net.UDPConn

	// Links incident on this router, from the INIT reply.
	neighbors map[int32]int32

	// Everything learned from the flood.
	linkCosts map[int32]int32
	linkEnds  map[int32]map[int32]struct{}
	seen      *cache.Cache
	topo      graph

	table map[int32]route

	topoTrace  *utils.Sink
	routeTrace *utils.Sink
	lastTopo   string
	lastRoute  string
}

// NewVirtualRouter resolves the emulator address and prepares an empty
// topology database for the given router id.
func NewVirtualRouter(emuAddr string, emuPort int, id int32) (*VirtualRouter, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", emuAddr, emuPort))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s:%d", emuAddr, emuPort)
	}
	return &VirtualRouter{
		emuAddr:    addr,
		id:         id,
		neighbors:  map[int32]int32{},
		linkCosts:  map[int32]int32{},
		linkEnds:   map[int32]map[int32]struct{}{},
		seen:       cache.New(cache.NoExpiration, 0),
		topo:       graph{},
		table:      map[int32]route{},
		topoTrace:  utils.Trace(fmt.Sprintf("topology_%d", id)),
		routeTrace: utils.Trace(fmt.Sprintf("routingtable_%d", id)),
	}, nil
}

// Run walks the three phases: INIT, initial flood, then the steady-state
// flood and SPF loop. The loop only ends on context cancellation or a
// socket failure.
func (r *VirtualRouter) Run(ctx context.Context) error {
	var err error
	r.sock, err = net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return errors.Wrap(err, "open router socket")
	}
	defer r.sock.Close()

	go func() {
		<-ctx.Done()
		_ = r.sock.SetReadDeadline(time.Now())
	}()

	if err := r.initPhase(ctx); err != nil {
		return err
	}
	if err := r.initialFlood(); err != nil {
		return err
	}
	return r.floodLoop(ctx)
}

// initPhase announces this router and absorbs the emulator's circuit
// database reply into the neighbor set.
func (r *VirtualRouter) initPhase(ctx context.Context) error {
	if _, err := r.sock.WriteToUDP(MarshalInit(r.id), r.emuAddr); err != nil {
		return errors.Wrap(err, "send init")
	}
	buf := make([]byte, 4096)
	for {
		n, _, err := r.sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "await circuit db")
		}
		typ, terr := MessageType(buf[:n])
		if terr != nil || typ != MsgCircuitDB {
			utils.Logger.Info("dropping message while awaiting circuit db", zap.Int32("type", typ))
			continue
		}
		db, derr := ParseCircuitDB(buf[:n])
		if derr != nil {
			utils.Logger.Info("dropping malformed circuit db")
			continue
		}
		for _, l := range db.Links {
			r.neighbors[l.ID] = l.Cost
			r.linkCosts[l.ID] = l.Cost
			r.linkEnds[l.ID] = map[int32]struct{}{r.id: {}}
		}
		utils.Logger.Info("router initialized",
			zap.Int32("id", r.id),
			zap.Int("links", len(db.Links)))
		return nil
	}
}

// initialFlood advertises each of this router's own links once.
func (r *VirtualRouter) initialFlood() error {
	for link, cost := range r.neighbors {
		lsa := &LSA{
			SenderID:       r.id,
			SenderLinkID:   link,
			RouterID:       r.id,
			RouterLinkID:   link,
			RouterLinkCost: cost,
		}
		if _, err := r.sock.WriteToUDP(lsa.Marshal(), r.emuAddr); err != nil {
			return errors.Wrap(err, "initial flood")
		}
	}
	return nil
}

func (r *VirtualRouter) floodLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		n, _, err := r.sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "recv lsa")
		}
		typ, terr := MessageType(buf[:n])
		if terr != nil {
			continue
		}
		if typ != MsgLSA {
			utils.Logger.Info("dropping unexpected message type", zap.Int32("type", typ))
			continue
		}
		lsa, perr := ParseLSA(buf[:n])
		if perr != nil {
			continue
		}
		if _, err := r.handleLSA(lsa); err != nil {
			return err
		}
	}
}

// handleLSA runs one advertisement through dedup, flooding, the topology
// update and SPF. It reports whether the LSA was new.
func (r *VirtualRouter) handleLSA(lsa *LSA) (bool, error) {
	key := fmt.Sprintf("%d/%d/%d", lsa.RouterID, lsa.RouterLinkID, lsa.RouterLinkCost)
	if err := r.seen.Add(key, struct{}{}, cache.NoExpiration); err != nil {
		utils.LSAProcessed.WithLabelValues("duplicate").Inc()
		return false, nil
	}
	utils.LSAProcessed.WithLabelValues("new").Inc()

	// Forward out every owned link. No split horizon; the dedup sets on
	// both ends terminate the flood.
	for link := range r.neighbors {
		out := &LSA{
			SenderID:       r.id,
			SenderLinkID:   link,
			RouterID:       lsa.RouterID,
			RouterLinkID:   lsa.RouterLinkID,
			RouterLinkCost: lsa.RouterLinkCost,
		}
		if _, err := r.sock.WriteToUDP(out.Marshal(), r.emuAddr); err != nil {
			return true, errors.Wrap(err, "forward lsa")
		}
	}

	r.absorb(lsa)
	r.rebuildGraph()
	r.recomputeRoutes()
	r.emit()
	return true, nil
}

// absorb folds the advertised fact and the hop it traveled over into the
// endpoint and cost tables.
func (r *VirtualRouter) absorb(lsa *LSA) {
	r.addEndpoint(lsa.RouterLinkID, lsa.RouterID)
	// The emulator relayed this message across SenderLinkID, so that
	// link joins the sender and us.
	r.addEndpoint(lsa.SenderLinkID, lsa.SenderID)
	r.addEndpoint(lsa.SenderLinkID, r.id)
	r.linkCosts[lsa.RouterLinkID] = lsa.RouterLinkCost
}

func (r *VirtualRouter) addEndpoint(link, routerID int32) {
	ends := r.linkEnds[link]
	if ends == nil {
		ends = map[int32]struct{}{}
		r.linkEnds[link] = ends
	}
	ends[routerID] = struct{}{}
}

// rebuildGraph materializes an edge for every link whose two endpoints are
// known.
func (r *VirtualRouter) rebuildGraph() {
	r.topo = graph{}
	for link, ends := range r.linkEnds {
		if len(ends) != 2 {
			continue
		}
		cost, ok := r.linkCosts[link]
		if !ok {
			continue
		}
		var uv [2]int32
		i := 0
		for id := range ends {
			uv[i] = id
			i++
		}
		r.topo.addEdge(uv[0], uv[1], link, cost)
	}
}

// recomputeRoutes reruns Dijkstra from this router and rebuilds the table.
// Unreachable destinations are omitted.
func (r *VirtualRouter) recomputeRoutes() {
	dist, parent := shortestPaths(r.topo, r.id)
	utils.SPFRuns.Inc()
	r.table = map[int32]route{}
	for dest := range r.topo {
		if dest == r.id {
			continue
		}
		cost, ok := dist[dest]
		if !ok {
			continue
		}
		nh, ok := nextHop(parent, r.id, dest)
		if !ok {
			continue
		}
		r.table[dest] = route{cost: cost, nextHop: nh}
	}
}

// emit renders the topology and routing table and appends each to its sink
// when the text changed since the last render.
func (r *VirtualRouter) emit() {
	topo := renderTopology(r.topo)
	if topo != r.lastTopo {
		if r.lastTopo != "" {
			r.topoTrace.Line("")
		}
		r.topoTrace.Line("%s", topo)
		r.lastTopo = topo
	}
	rt := renderRouting(r.table)
	if rt != r.lastRoute {
		if r.lastRoute != "" {
			r.routeTrace.Line("")
		}
		r.routeTrace.Line("%s", rt)
		r.lastRoute = rt
	}
}
