package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab/config"
	"netlab/utils"
)

// lossyRelay implements the emulator contract in-process: DATA and the
// sender's EOT go to the receiver, ACKs and the receiver's EOT go back to
// the sender. A drop predicate decides, per occurrence of a (type, seq)
// pair, whether to lose the datagram.
type lossyRelay struct {
	conn       *net.UDPConn
	receiverIn *net.UDPAddr
	senderAck  *net.UDPAddr

	drop func(p *Packet, nth int) bool

	senderSrc *net.UDPAddr
	counts    map[string]int
}

func startRelay(t *testing.T, receiverIn, senderAck int, drop func(p *Packet, nth int) bool) *lossyRelay {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	if drop == nil {
		drop = func(*Packet, int) bool { return false }
	}
	r := &lossyRelay{
		conn:       conn,
		receiverIn: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: receiverIn},
		senderAck:  &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: senderAck},
		drop:       drop,
		counts:     map[string]int{},
	}
	go r.loop()
	return r
}

func (r *lossyRelay) port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

func (r *lossyRelay) loop() {
	buf := make([]byte, 2048)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		p, perr := ParsePacket(buf[:n])
		if perr != nil {
			continue
		}
		if p.Type == TypeData && r.senderSrc == nil {
			r.senderSrc = src
		}

		key := fmt.Sprintf("%d/%d", p.Type, p.Seq)
		r.counts[key]++
		if r.drop(p, r.counts[key]) {
			continue
		}

		var dst *net.UDPAddr
		switch p.Type {
		case TypeData:
			dst = r.receiverIn
		case TypeAck:
			dst = r.senderAck
		case TypeEOT:
			if r.senderSrc != nil && src.String() == r.senderSrc.String() {
				dst = r.receiverIn
			} else {
				dst = r.senderAck
			}
		}
		_, _ = r.conn.WriteToUDP(buf[:n], dst)
	}
}

// runTransfer pushes content through a full sender/relay/receiver session
// and returns the trace directory for assertions on the logs.
func runTransfer(t *testing.T, content []byte, drop func(p *Packet, nth int) bool) string {
	t.Helper()
	utils.CloseTraces()
	dir := t.TempDir()
	config.GlobalCfg.Trace.Dir = dir

	srcFile := filepath.Join(dir, "src.dat")
	dstFile := filepath.Join(dir, "dst.dat")
	require.NoError(t, os.WriteFile(srcFile, content, 0o644))

	ackPort := freePort(t)
	inPort := freePort(t)
	relay := startRelay(t, inPort, ackPort, drop)

	recv, err := NewReceiver("127.0.0.1", relay.port(), inPort, dstFile)
	require.NoError(t, err)
	send, err := NewSender("127.0.0.1", relay.port(), ackPort, srcFile)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recvDone := make(chan error, 1)
	go func() { recvDone <- recv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, send.Run(ctx))
	select {
	case err := <-recvDone:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("receiver did not terminate")
	}

	got, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "delivered stream differs from source")
	return dir
}

func traceLines(t *testing.T, dir, name string) []string {
	t.Helper()
	buf, err := os.ReadFile(filepath.Join(dir, name+".log"))
	require.NoError(t, err)
	return strings.Fields(string(buf))
}

func TestTransferTinyFile(t *testing.T) {
	content := []byte("hello-world-0123456789-abcdef\n")
	dir := runTransfer(t, content, nil)

	// One DATA, its ACK, and the EOT exchange.
	seqs := traceLines(t, dir, "seqnum")
	require.NotEmpty(t, seqs)
	assert.Equal(t, "0", seqs[0])
	assert.Contains(t, traceLines(t, dir, "ack"), "0")
	assert.Equal(t, "0", traceLines(t, dir, "arrival")[0])
}

func TestTransferWithDataLoss(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 250) // 2500 bytes, 5 chunks
	dir := runTransfer(t, content, func(p *Packet, nth int) bool {
		// Lose the first transmission of DATA(2) exactly once.
		return p.Type == TypeData && p.Seq == 2 && nth == 1
	})

	// The timer must have driven a retransmission of seq 2.
	count := 0
	for _, s := range traceLines(t, dir, "seqnum") {
		if s == "2" {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 2)
}

func TestTransferWithAckLoss(t *testing.T) {
	content := bytes.Repeat([]byte("abcde"), 300) // 1500 bytes, 3 chunks
	dir := runTransfer(t, content, func(p *Packet, nth int) bool {
		return p.Type == TypeAck && p.Seq == 0 && nth == 1
	})

	// ACKs are cumulative, so ACK(1) covers the lost ACK(0) and the loss
	// does not by itself force a retransmission. Any duplicate DATA that
	// does reach the receiver is re-acked but not written twice (checked
	// by the byte-exact file compare in runTransfer); every chunk shows up
	// in the arrival log at least once.
	arrivals := traceLines(t, dir, "arrival")
	assert.GreaterOrEqual(t, len(arrivals), 3)
}

func TestTransferWrapsSequenceNumbers(t *testing.T) {
	// 40 chunks push the sequence numbers past 31 -> 0.
	content := bytes.Repeat([]byte{0x5a}, 40*MaxDataLength)
	dir := runTransfer(t, content, nil)

	seen := map[string]bool{}
	for _, s := range traceLines(t, dir, "seqnum") {
		seen[s] = true
	}
	// Every residue of the ring was used.
	for i := 0; i < SeqModulo; i++ {
		assert.True(t, seen[fmt.Sprintf("%d", i)], "sequence %d never sent", i)
	}
}
