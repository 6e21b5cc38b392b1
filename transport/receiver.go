package transport

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"netlab/config"
	"netlab/utils"
)

// Receiver writes the delivered byte stream to a file in order and answers
// every DATA packet with a cumulative ACK. Single threaded: one blocking
// receive is the only suspension point.
type Receiver struct {
	emuAddr  *net.UDPAddr
	inPort   int
	filename string

	seqModulo int32

	expectedseqnum int32
	lastAck        *Packet

	sockSend *net.UDPConn
	sockRecv *net.UDPConn

	arrivalTrace *utils.Sink
}

// NewReceiver resolves the relay address and applies the transport
// tunables from the global config.
func NewReceiver(emuAddr string, emuPort, inPort int, filename string) (*Receiver, error) {
	addr, err := ResolveAddr(emuAddr, emuPort)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		emuAddr:      addr,
		inPort:       inPort,
		filename:     filename,
		seqModulo:    int32(config.GlobalCfg.Transport.SeqModulo),
		arrivalTrace: utils.Trace("arrival"),
	}, nil
}

// Run loops until the sender's EOT arrives, then answers with its own EOT
// and returns. Delivery is strictly conditional on the expected sequence
// number; out-of-order DATA only triggers a resend of the last ACK.
func (r *Receiver) Run(ctx context.Context) error {
	var err error
	if r.sockSend, err = SockSend(); err != nil {
		return err
	}
	defer r.sockSend.Close()
	if r.sockRecv, err = SockRecv(r.inPort); err != nil {
		return err
	}
	defer r.sockRecv.Close()

	file, err := os.Create(r.filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", r.filename)
	}
	defer file.Close()

	utils.Logger.Info("receiver started",
		zap.String("emulator", r.emuAddr.String()),
		zap.Int("inPort", r.inPort),
		zap.String("file", r.filename))

	go func() {
		<-ctx.Done()
		_ = r.sockRecv.SetReadDeadline(time.Now())
	}()

loop:
	for {
		pkt, rerr := RecvPacket(r.sockRecv)
		if rerr != nil {
			if errors.Cause(rerr) == ErrMalformed {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return rerr
		}
		switch pkt.Type {
		case TypeData:
			r.arrivalTrace.Line("%d", pkt.Seq)
			if pkt.Seq == r.expectedseqnum {
				if _, werr := file.Write(pkt.Data); werr != nil {
					return errors.Wrapf(werr, "write %s", r.filename)
				}
				utils.BytesDelivered.Add(float64(len(pkt.Data)))
				r.lastAck = NewAck(r.expectedseqnum)
				if serr := r.sendAck(r.lastAck); serr != nil {
					return serr
				}
				r.expectedseqnum = (r.expectedseqnum + 1) % r.seqModulo
			} else {
				// Nothing to deliver; repeat the last ACK, or the -1
				// sentinel when no packet has arrived in order yet.
				if r.lastAck == nil {
					r.lastAck = NewAck(-1)
				}
				if serr := r.sendAck(r.lastAck); serr != nil {
					return serr
				}
			}
		case TypeEOT:
			break loop
		default:
			utils.Logger.Info("dropping unexpected packet type", zap.Int32("type", pkt.Type))
		}
	}

	if err := SendPacket(r.sockSend, r.emuAddr, NewEOT(r.expectedseqnum)); err != nil {
		return err
	}
	utils.PacketsSent.WithLabelValues("eot").Inc()
	utils.Logger.Info("receiver done", zap.String("file", r.filename))
	return nil
}

func (r *Receiver) sendAck(ack *Packet) error {
	if err := SendPacket(r.sockSend, r.emuAddr, ack); err != nil {
		return err
	}
	utils.PacketsSent.WithLabelValues("ack").Inc()
	return nil
}
