// Package ws2_32 is the Winsock ABI shim: it decodes guest sockaddr_in
// buffers and calls into internal/winsock, and keeps socket objects
// behind the shared handle table alongside files, events and registry
// keys.
package ws2_32

import (
	"encoding/binary"
	"unsafe"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
	"github.com/citcrun/citc/internal/winsock"
)

// Subsystem adapts winsock.Subsystem onto the handle table.
type Subsystem struct {
	sock    *winsock.Subsystem
	handles *handle.Table
}

// New builds a Subsystem over sock, resolving socket handles through
// handles.
func New(sock *winsock.Subsystem, handles *handle.Table) *Subsystem {
	return &Subsystem{sock: sock, handles: handles}
}

type socketHandleObject struct {
	*winsock.SocketObject
}

func (socketHandleObject) Kind() string { return "socket" }

// WSAStartup implements WSAStartup.
func (s *Subsystem) WSAStartup() {
	s.sock.Startup()
}

// WSACleanup implements WSACleanup.
func (s *Subsystem) WSACleanup() error {
	return s.sock.Cleanup()
}

// Socket implements socket().
func (s *Subsystem) Socket(family, sockType int) (handle.H, error) {
	obj, err := s.sock.Socket(family, sockType)
	if err != nil {
		return handle.Invalid, err
	}
	return s.handles.Open(socketHandleObject{obj}), nil
}

// OpenExisting implements the socket-activation "open existing socket"
// path: pseudoPath is "existing:<index>".
func (s *Subsystem) OpenExisting(pseudoPath string) (handle.H, error) {
	obj, err := s.sock.OpenExisting(pseudoPath)
	if err != nil {
		return handle.Invalid, err
	}
	return s.handles.Open(socketHandleObject{obj}), nil
}

func (s *Subsystem) resolve(h handle.H) (*winsock.SocketObject, error) {
	obj, ok := s.handles.Lookup(h)
	if !ok {
		return nil, winerr.New("ws2_32", winerr.NotFound, nil)
	}
	so, ok := obj.(socketHandleObject)
	if !ok {
		return nil, winerr.New("ws2_32", winerr.MalformedInput, nil)
	}
	return so.SocketObject, nil
}

// decodeSockAddrIn reads the Windows-layout sockaddr_in at addr
// byte-for-byte: family, network-byte-order port, then the 4-byte
// address.
func decodeSockAddrIn(addr uintptr) winsock.SockAddrIn {
	p := (*[16]byte)(unsafe.Pointer(addr))
	var a winsock.SockAddrIn
	a.Family = binary.LittleEndian.Uint16(p[0:2])
	a.Port = binary.BigEndian.Uint16(p[2:4])
	copy(a.Addr[:], p[4:8])
	return a
}

// Listen binds the socket to the sockaddr_in at addr and starts
// listening on it; backlog is passed through to the winsock layer.
func (s *Subsystem) Listen(h handle.H, addr uintptr, backlog int) error {
	so, err := s.resolve(h)
	if err != nil {
		return err
	}
	return so.Listen(decodeSockAddrIn(addr), backlog)
}

// Accept implements accept().
func (s *Subsystem) Accept(h handle.H) (handle.H, error) {
	so, err := s.resolve(h)
	if err != nil {
		return handle.Invalid, err
	}
	client, err := so.Accept()
	if err != nil {
		return handle.Invalid, err
	}
	return s.handles.Open(socketHandleObject{client}), nil
}

// Connect implements connect().
func (s *Subsystem) Connect(h handle.H, addr uintptr) error {
	so, err := s.resolve(h)
	if err != nil {
		return err
	}
	return so.Connect(decodeSockAddrIn(addr))
}

// Send implements send() given a guest buffer address and length.
func (s *Subsystem) Send(h handle.H, bufAddr uintptr, length int) (int, error) {
	so, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(bufAddr)), length)
	return so.Send(buf)
}

// Recv implements recv() given a guest buffer address and capacity.
func (s *Subsystem) Recv(h handle.H, bufAddr uintptr, capacity int) (int, error) {
	so, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(bufAddr)), capacity)
	return so.Recv(buf)
}

// CloseSocket implements closesocket(): a thin alias over the shared
// handle table's Close.
func (s *Subsystem) CloseSocket(h handle.H) error {
	return s.handles.Close(h)
}
