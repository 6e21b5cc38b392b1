package transport

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"netlab/config"
	"netlab/utils"
)

// Sender transmits a file through the lossy relay with the Go-Back-N
// protocol. Two tasks share the window state: a producer feeding chunks
// into the window and the ACK loop draining the socket. One mutex guards
// base, nextseqnum, the packet buffer and the timer.
type Sender struct {
	emuAddr  *net.UDPAddr
	ackPort  int
	filename string

	windowSize int32
	seqModulo  int32
	maxData    int
	timeout    time.Duration
	backoff    time.Duration

	sockSend *net.UDPConn
	sockRecv *net.UDPConn

	seqnumTrace *utils.Sink
	ackTrace    *utils.Sink

	mu         sync.Mutex
	base       int32
	nextseqnum int32
	sndpkt     []*Packet
	timer      *time.Timer
	timerGen   uint64
	allQueued  bool
	eotSent    bool
}

// NewSender resolves the relay address and applies the transport tunables
// from the global config.
func NewSender(emuAddr string, emuPort, ackPort int, filename string) (*Sender, error) {
	addr, err := ResolveAddr(emuAddr, emuPort)
	if err != nil {
		return nil, err
	}
	t := config.GlobalCfg.Transport
	return &Sender{
		emuAddr:     addr,
		ackPort:     ackPort,
		filename:    filename,
		windowSize:  int32(t.WindowSize),
		seqModulo:   int32(t.SeqModulo),
		maxData:     t.MaxData,
		timeout:     time.Duration(t.TimeoutMs) * time.Millisecond,
		backoff:     time.Duration(t.BackoffMs) * time.Millisecond,
		sndpkt:      make([]*Packet, t.SeqModulo),
		seqnumTrace: utils.Trace("seqnum"),
		ackTrace:    utils.Trace("ack"),
	}, nil
}

// Run transmits the whole file and returns once the EOT handshake has
// completed. A socket or file failure in either task is fatal and ends
// both tasks. A failed retransmission in the timer callback is only
// logged: the timer stays armed and the next timeout resends again. If
// ctx is cancelled, both tasks stop early and Run returns nil.
func (s *Sender) Run(ctx context.Context) error {
	var err error
	if s.sockSend, err = SockSend(); err != nil {
		return err
	}
	defer s.sockSend.Close()
	if s.sockRecv, err = SockRecv(s.ackPort); err != nil {
		return err
	}
	defer s.sockRecv.Close()

	utils.Logger.Info("sender started",
		zap.String("emulator", s.emuAddr.String()),
		zap.Int("ackPort", s.ackPort),
		zap.String("file", s.filename))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.produce(gctx) })
	g.Go(func() error { return s.recvLoop(gctx) })

	// Unblock the ACK loop when the other task fails or the caller
	// cancels; the deadline is harmless after a normal exit.
	go func() {
		<-gctx.Done()
		_ = s.sockRecv.SetReadDeadline(time.Now())
	}()

	err = g.Wait()

	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	if err != nil && err != context.Canceled {
		utils.Logger.Error("transfer failed", zap.Error(err))
		return err
	}
	utils.Logger.Info("transfer complete")
	return nil
}

// produce walks the source file in maxData sized chunks and feeds each one
// into the window, backing off while the window is full.
func (s *Sender) produce(ctx context.Context) error {
	f, err := os.Open(s.filename)
	if err != nil {
		return errors.Wrapf(err, "open %s", s.filename)
	}
	defer f.Close()

	buf := make([]byte, s.maxData)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			for {
				ok, serr := s.trySend(chunk)
				if serr != nil {
					return serr
				}
				if ok {
					break
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.backoff):
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrapf(rerr, "read %s", s.filename)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allQueued = true
	// Everything may already be acknowledged by the time the last chunk
	// is queued; the EOT goes out here instead of the ACK path then.
	if s.base == s.nextseqnum && !s.eotSent {
		return s.sendEOTLocked()
	}
	return nil
}

// recvLoop drains ACKs and terminates on the EOT reply.
func (s *Sender) recvLoop(ctx context.Context) error {
	for {
		pkt, err := RecvPacket(s.sockRecv)
		if err != nil {
			if errors.Cause(err) == ErrMalformed {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		switch pkt.Type {
		case TypeAck:
			s.ackTrace.Line("%d", pkt.Seq)
			utils.AcksReceived.Inc()
			if err := s.onAck(pkt.Seq); err != nil {
				return err
			}
		case TypeEOT:
			return nil
		default:
			utils.Logger.Info("dropping unexpected packet type", zap.Int32("type", pkt.Type))
		}
	}
}

// trySend stores and emits one chunk if the window has room. It reports
// false when the window is full so the producer can back off and retry.
func (s *Sender) trySend(chunk []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occupancyLocked() >= s.windowSize {
		return false, nil
	}
	pkt, err := NewData(s.nextseqnum, chunk)
	if err != nil {
		return false, err
	}
	s.sndpkt[s.nextseqnum] = pkt
	if err := s.udtSendLocked(pkt); err != nil {
		return false, err
	}
	if s.base == s.nextseqnum {
		s.startTimerLocked()
	}
	s.nextseqnum = (s.nextseqnum + 1) % s.seqModulo
	return true, nil
}

// onAck advances the window for a cumulative acknowledgment. ACKs that
// would move base backwards on the ring are ignored.
func (s *Sender) onAck(a int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a < 0 {
		// Sentinel from a receiver that has seen nothing in order.
		return nil
	}
	d := (a - s.base + s.seqModulo) % s.seqModulo
	if d >= s.occupancyLocked() {
		return nil
	}
	s.base = (a + 1) % s.seqModulo
	if s.base == s.nextseqnum {
		s.stopTimerLocked()
		if s.allQueued && !s.eotSent {
			return s.sendEOTLocked()
		}
		return nil
	}
	s.startTimerLocked()
	return nil
}

// occupancyLocked is the number of outstanding sequence numbers, the size
// of [base, nextseqnum) on the ring.
func (s *Sender) occupancyLocked() int32 {
	return (s.nextseqnum - s.base + s.seqModulo) % s.seqModulo
}

// unackedLocked lists the outstanding sequence numbers in send order.
func (s *Sender) unackedLocked() []int32 {
	out := make([]int32, 0, s.occupancyLocked())
	for i := s.base; i != s.nextseqnum; i = (i + 1) % s.seqModulo {
		out = append(out, i)
	}
	return out
}

func (s *Sender) udtSendLocked(p *Packet) error {
	if err := SendPacket(s.sockSend, s.emuAddr, p); err != nil {
		return err
	}
	s.seqnumTrace.Line("%d", p.Seq)
	switch p.Type {
	case TypeData:
		utils.PacketsSent.WithLabelValues("data").Inc()
	case TypeEOT:
		utils.PacketsSent.WithLabelValues("eot").Inc()
	}
	return nil
}

func (s *Sender) sendEOTLocked() error {
	eot := NewEOT(s.nextseqnum)
	if err := s.udtSendLocked(eot); err != nil {
		return err
	}
	s.nextseqnum = (s.nextseqnum + 1) % s.seqModulo
	s.eotSent = true
	return nil
}

// startTimerLocked arms the retransmission timer, replacing any prior
// deadline. The generation counter keeps a concurrently firing callback
// from acting after a stop or restart.
func (s *Sender) startTimerLocked() {
	s.timerGen++
	gen := s.timerGen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.timeout, func() { s.timeoutEvent(gen) })
}

func (s *Sender) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// timeoutEvent rearms the timer and resends every outstanding packet.
func (s *Sender) timeoutEvent(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen {
		return
	}
	s.startTimerLocked()
	for _, i := range s.unackedLocked() {
		pkt := s.sndpkt[i]
		if pkt == nil {
			continue
		}
		if err := s.udtSendLocked(pkt); err != nil {
			utils.Logger.Error("retransmit failed", zap.Int32("seq", i), zap.Error(err))
			return
		}
		utils.Retransmits.Inc()
	}
}
