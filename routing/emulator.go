package routing

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"netlab/utils"
)

// Emulator is the central forwarding process: it awaits one INIT per
// router in the topology, answers each with its circuit database, then
// relays every LSA to the neighbor across the sender's chosen link.
// Unknown senders and invalid link ids are dropped.
type Emulator struct {
	bindIP string
	port   int
	topo   *Topology

	sock  *net.UDPConn
	addrs map[int32]*net.UDPAddr
}

// NewEmulator prepares an emulator bound to the given address for the
// given topology.
func NewEmulator(bindIP string, port int, topo *Topology) *Emulator {
	return &Emulator{
		bindIP: bindIP,
		port:   port,
		topo:   topo,
		addrs:  map[int32]*net.UDPAddr{},
	}
}

// LocalPort reports the bound port, useful when the emulator was started
// on port 0.
func (e *Emulator) LocalPort() int {
	return e.sock.LocalAddr().(*net.UDPAddr).Port
}

// Start binds the socket. Split from Run so callers can learn the port
// before the routers start.
func (e *Emulator) Start() error {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(e.bindIP), Port: e.port})
	if err != nil {
		return errors.Wrapf(err, "bind %s:%d", e.bindIP, e.port)
	}
	e.sock = sock
	return nil
}

// Run performs the INIT barrier and then forwards LSAs until the context
// is cancelled or the socket fails.
func (e *Emulator) Run(ctx context.Context) error {
	if e.sock == nil {
		if err := e.Start(); err != nil {
			return err
		}
	}
	defer e.sock.Close()

	go func() {
		<-ctx.Done()
		_ = e.sock.SetReadDeadline(time.Now())
	}()

	if err := e.initBarrier(ctx); err != nil {
		return err
	}
	return e.forwardLoop(ctx)
}

// initBarrier collects exactly one INIT per router, then replies to each
// with its circuit database.
func (e *Emulator) initBarrier(ctx context.Context) error {
	routers := e.topo.Routers()
	known := map[int32]bool{}
	for _, id := range routers {
		known[id] = true
	}

	buf := make([]byte, 4096)
	for len(e.addrs) < len(routers) {
		n, src, err := e.sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "await init")
		}
		id, perr := ParseInit(buf[:n])
		if perr != nil {
			utils.Logger.Info("dropping non-init message during init phase")
			continue
		}
		if !known[id] {
			utils.Logger.Info("dropping init from unknown router", zap.Int32("id", id))
			continue
		}
		if _, dup := e.addrs[id]; dup {
			utils.Logger.Info("dropping duplicate init", zap.Int32("id", id))
			continue
		}
		e.addrs[id] = src
		utils.Logger.Info("router joined",
			zap.Int32("id", id),
			zap.String("addr", src.String()),
			zap.Int("waitingFor", len(routers)-len(e.addrs)))
	}

	for id, addr := range e.addrs {
		db := e.topo.CircuitDB(id)
		if _, err := e.sock.WriteToUDP(MarshalCircuitDB(db), addr); err != nil {
			return errors.Wrapf(err, "send circuit db to router %d", id)
		}
	}
	utils.Logger.Info("all routers joined, forwarding")
	return nil
}

func (e *Emulator) forwardLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		n, _, err := e.sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "recv")
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
		peer, ok := e.topo.PeerAcross(lsa.SenderID, lsa.SenderLinkID)
		if !ok {
			utils.Logger.Info("dropping lsa with invalid sender link",
				zap.Int32("sender", lsa.SenderID),
				zap.Int32("link", lsa.SenderLinkID))
			continue
		}
		addr, ok := e.addrs[peer]
		if !ok {
			utils.Logger.Info("dropping lsa for unknown peer", zap.Int32("peer", peer))
			continue
		}
		if _, err := e.sock.WriteToUDP(buf[:n], addr); err != nil {
			return errors.Wrapf(err, "forward lsa to router %d", peer)
		}
	}
}
