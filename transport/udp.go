package transport

import (
	"net"
	"strconv"

	"github.com/pkg/errors"

	"netlab/utils"
)

// SockSend opens an unconnected UDP socket for sending.
func SockSend() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, errors.Wrap(err, "open send socket")
	}
	return conn, nil
}

// SockRecv opens a UDP socket bound to the given local port.
func SockRecv(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, errors.Wrapf(err, "bind port %d", port)
	}
	return conn, nil
}

// ResolveAddr turns host and port into a UDP address.
func ResolveAddr(host string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s:%d", host, port)
	}
	return addr, nil
}

// SendPacket serializes one packet onto the wire.
func SendPacket(conn *net.UDPConn, addr *net.UDPAddr, p *Packet) error {
	if _, err := conn.WriteToUDP(p.Marshal(), addr); err != nil {
		return errors.Wrap(err, "send packet")
	}
	return nil
}

// RecvPacket blocks for one datagram and parses it. A malformed datagram
// comes back as ErrMalformed so the caller can drop it and keep going.
func RecvPacket(conn *net.UDPConn) (*Packet, error) {
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, errors.Wrap(err, "recv packet")
	}
	p, err := ParsePacket(buf[:n])
	if err != nil {
		utils.Logger.Debug("dropping malformed datagram")
		return nil, err
	}
	return p, nil
}
