package winsock

import (
	"fmt"
	"net"
	"os"

	"github.com/citcrun/citc/internal/winerr"
)

// SockAddrIn is a decoded Windows sockaddr_in: family, port, then the
// 4-byte IPv4 address. Port holds the port number in host order; the
// ws2_32 shim converts it from the guest struct's network byte order
// when decoding.
type SockAddrIn struct {
	Family uint16
	Port   uint16 // port number, host order
	Addr   [4]byte
	Zero   [8]byte
}

func (a SockAddrIn) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
}

// Socket implements the socket() call: it only records family/type,
// deferring the real host resource until Listen/Connect.
func (s *Subsystem) Socket(family, sockType int) (*SocketObject, error) {
	if !s.Started() {
		return nil, winerr.New("socket", winerr.StateInvalid, nil)
	}
	return &SocketObject{family: family, sockType: sockType, blocking: true}, nil
}

func networkFor(sockType int) string {
	if sockType == SockDgram {
		return "udp4"
	}
	return "tcp4"
}

// Bind+Listen implements bind()+listen() together, since net's listener
// construction is atomic: citc exposes them as one call and a
// zero-backlog placeholder for plain bind-only use is covered by Connect
// instead.
func (o *SocketObject) Listen(addr SockAddrIn, backlog int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, err := net.Listen(networkFor(o.sockType), addr.String())
	if err != nil {
		return winerr.New("listen", winerr.IOFailed, err)
	}
	o.listener = l
	return nil
}

// Addr returns the listening address, for tests and diagnostics that
// need to know which ephemeral port a Listen with port 0 picked.
func (o *SocketObject) Addr() net.Addr {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener != nil {
		return o.listener.Addr()
	}
	return nil
}

// Accept implements accept(), blocking on the host listener.
func (o *SocketObject) Accept() (*SocketObject, error) {
	o.mu.Lock()
	l := o.listener
	sockType := o.sockType
	o.mu.Unlock()
	if l == nil {
		return nil, winerr.New("accept", winerr.StateInvalid, nil)
	}
	conn, err := l.Accept()
	if err != nil {
		return nil, winerr.New("accept", winerr.IOFailed, err)
	}
	return &SocketObject{family: AfInet, sockType: sockType, conn: conn, blocking: true}, nil
}

// Connect implements connect().
func (o *SocketObject) Connect(addr SockAddrIn) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	conn, err := net.Dial(networkFor(o.sockType), addr.String())
	if err != nil {
		return winerr.New("connect", winerr.IOFailed, err)
	}
	o.conn = conn
	return nil
}

// Send implements send() over a connected stream or datagram socket.
func (o *SocketObject) Send(buf []byte) (int, error) {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()
	if conn == nil {
		return 0, winerr.New("send", winerr.StateInvalid, nil)
	}
	n, err := conn.Write(buf)
	if err != nil {
		return n, winerr.New("send", winerr.IOFailed, err)
	}
	return n, nil
}

// Recv implements recv() over a connected stream or datagram socket.
func (o *SocketObject) Recv(buf []byte) (int, error) {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()
	if conn == nil {
		return 0, winerr.New("recv", winerr.StateInvalid, nil)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return n, winerr.New("recv", winerr.IOFailed, err)
	}
	return n, nil
}

// HostEntry is the decoded form of gethostbyname's linked list of
// address records; the ABI shim owns serializing it back into guest
// memory and the caller-must-free contract.
type HostEntry struct {
	Name      string
	Addresses [][4]byte
}

// GetHostByName implements gethostbyname via the host resolver.
func GetHostByName(name string) (*HostEntry, error) {
	ips, err := net.LookupIP(name)
	if err != nil {
		return nil, winerr.New("gethostbyname", winerr.NotFound, err)
	}
	entry := &HostEntry{Name: name}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var b [4]byte
			copy(b[:], v4)
			entry.Addresses = append(entry.Addresses, b)
		}
	}
	if len(entry.Addresses) == 0 {
		return nil, winerr.New("gethostbyname", winerr.NotFound, nil)
	}
	return entry, nil
}

// GetHostName implements gethostname.
func GetHostName() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", winerr.New("gethostname", winerr.IOFailed, err)
	}
	return name, nil
}
