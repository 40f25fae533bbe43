// Package rawsocket implements the ethercat Link boundary over a Linux
// AF_PACKET raw socket, the way an integrator wires a MainDevice to a
// real NIC. It is not imported by anything in the core packages; only
// cmd/ethercat uses it.
package rawsocket

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// EtherType is the value EtherCAT frames carry in the Ethernet header.
const EtherType = 0x88A4

// DefaultReadTimeout bounds each Receive call so a closed or silent
// ring doesn't hang the caller forever.
var DefaultReadTimeout = unix.Timeval{Sec: 0, Usec: 200_000}

// Link sends and receives raw Ethernet frames on a network interface
// using an AF_PACKET SOCK_RAW socket bound to EtherType 0x88A4.
type Link struct {
	f      *os.File
	fd     int
	ifi    *net.Interface
	logger *slog.Logger
}

// Open binds a raw socket to the named interface (e.g. "eth0"). The
// interface must already be up; Open does not configure it.
func Open(ifaceName string) (*Link, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("rawsocket: %w", err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(EtherType))
	if err != nil {
		return nil, fmt.Errorf("rawsocket: create socket: %w", err)
	}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &DefaultReadTimeout); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsocket: set read timeout: %w", err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(EtherType),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsocket: bind to %s: %w", ifaceName, err)
	}

	return &Link{
		f:      os.NewFile(uintptr(fd), fmt.Sprintf("rawsocket(%s)", ifaceName)),
		fd:     fd,
		ifi:    ifi,
		logger: slog.Default(),
	}, nil
}

// WithLogger overrides the default logger.
func (l *Link) WithLogger(logger *slog.Logger) *Link {
	l.logger = logger
	return l
}

// HardwareAddr is the bound interface's MAC address, used by callers
// to stamp the source field of outgoing frames.
func (l *Link) HardwareAddr() net.HardwareAddr { return l.ifi.HardwareAddr }

// Send writes one Ethernet frame, already fully formed by the caller.
func (l *Link) Send(frame []byte) error {
	n, err := l.f.Write(frame)
	if err != nil {
		return fmt.Errorf("rawsocket: write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("rawsocket: short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// Receive blocks until a frame arrives, the read timeout elapses, or
// the link is closed. An elapsed timeout is returned unwrapped, so
// os.IsTimeout reports true for it; pdu.RxDriver keeps reading after
// one.
func (l *Link) Receive(buf []byte) (int, error) {
	n, err := l.f.Read(buf)
	if err != nil {
		if os.IsTimeout(err) {
			return 0, err
		}
		return 0, fmt.Errorf("rawsocket: read: %w", err)
	}
	return n, nil
}

// Close releases the underlying socket.
func (l *Link) Close() error {
	return l.f.Close()
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | v>>8
}
