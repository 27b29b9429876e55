package udp

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	applog "studio/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp sender is closed")

// UDPSender writes datagrams to one target address.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool
}

// NewUDPSender dials targetAddress ("host:port"). No local port is bound.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve UDP target %q", targetAddress)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial UDP target %q", targetAddress)
	}
	applog.Infof("UDP Sender: sending to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one packet.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return errors.Wrap(err, "send UDP packet")
	}
	return nil
}

// Close closes the connection. Further calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	applog.Debugf("UDP Sender: closing connection to %s", s.conn.RemoteAddr())
	return errors.Wrap(s.conn.Close(), "close UDP connection")
}
