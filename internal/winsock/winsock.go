// Package winsock bridges the Windows sockets API onto host BSD
// sockets: each Windows socket handle is a thin wrapper over a host
// file descriptor, reached through the standard library's net package.
// Inherited, socket-activated descriptors are adopted with os.NewFile
// and net.FileListener / net.FilePacketConn.
package winsock

import (
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/citcrun/citc/internal/winerr"
)

// Address families and socket types citc recognizes, matching the
// Winsock AF_*/SOCK_* numeric constants.
const (
	AfInet  = 2
	AfInet6 = 23

	SockStream = 1
	SockDgram  = 2
)

// SocketObject is the kernel object backing a Winsock handle.
type SocketObject struct {
	mu       sync.Mutex
	family   int
	sockType int
	listener net.Listener
	packet   net.PacketConn
	conn     net.Conn
	blocking bool
	lastErr  winerr.Code
}

func (o *SocketObject) Kind() string { return "socket" }

func (o *SocketObject) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener != nil {
		_ = o.listener.Close()
	}
	if o.conn != nil {
		_ = o.conn.Close()
	}
	if o.packet != nil {
		_ = o.packet.Close()
	}
}

// SetBlocking records the blocking flag, mirroring ioctlsocket's FIONBIO.
// Send and Recv do not consult the flag; they always block.
func (o *SocketObject) SetBlocking(b bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blocking = b
}

// Subsystem tracks Winsock startup/cleanup refcounting and holds a
// per-thread last-socket-error table read by LastError; no socket
// operation records an error into that table, so LastError reports OK.
// It is also where inherited, socket-activated descriptors are
// registered at construction.
type Subsystem struct {
	mu        sync.Mutex
	startups  int
	preopened map[string]*SocketObject // keyed by "existing:<index>"

	lastErrMu sync.Mutex
	lastErr   map[uint32]winerr.Code
}

// New builds a Subsystem and adopts any descriptors inherited via the
// systemd-style LISTEN_FDS/LISTEN_PID socket-activation convention: the
// loader forwards these from the host init system, and the guest
// consumes them transparently by opening "existing:<index>" sockets.
func New() *Subsystem {
	s := &Subsystem{
		preopened: make(map[string]*SocketObject),
		lastErr:   make(map[uint32]winerr.Code),
	}
	s.adoptInheritedDescriptors()
	return s
}

const inheritedFDBase = 3

func (s *Subsystem) adoptInheritedDescriptors() {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid != os.Getpid() {
		return
	}
	n, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil || n <= 0 {
		return
	}
	for i := 0; i < n; i++ {
		fd := inheritedFDBase + i
		f := os.NewFile(uintptr(fd), "listen-fd-"+strconv.Itoa(i))
		if f == nil {
			continue
		}
		if l, err := net.FileListener(f); err == nil {
			s.preopened[pseudoPath(i)] = &SocketObject{family: AfInet, sockType: SockStream, listener: l, blocking: true}
			continue
		}
		if c, err := net.FilePacketConn(f); err == nil {
			s.preopened[pseudoPath(i)] = &SocketObject{family: AfInet, sockType: SockDgram, packet: c, blocking: true}
		}
	}
}

func pseudoPath(index int) string {
	return "existing:" + strconv.Itoa(index)
}

// Startup implements WSAStartup: reference-counted, must precede any
// socket operation.
func (s *Subsystem) Startup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startups++
}

// Cleanup implements WSACleanup, the matching decrement.
func (s *Subsystem) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startups == 0 {
		return winerr.New("WSACleanup", winerr.StateInvalid, nil)
	}
	s.startups--
	return nil
}

// Started reports whether Startup has been called at least once more
// than Cleanup, the precondition every other operation checks.
func (s *Subsystem) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startups > 0
}

// OpenExisting adopts a pre-bound socket-activated descriptor by its
// pseudo-path ("existing:<index>"), consuming it: a second call for the
// same index fails.
func (s *Subsystem) OpenExisting(pseudoPath string) (*SocketObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.preopened[pseudoPath]
	if !ok {
		return nil, winerr.New("winsock.OpenExisting", winerr.NotFound, nil)
	}
	delete(s.preopened, pseudoPath)
	return obj, nil
}

func (s *Subsystem) setLastError(tid uint32, c winerr.Code) {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	s.lastErr[tid] = c
}

// LastError implements WSAGetLastError for the calling thread.
func (s *Subsystem) LastError(tid uint32) winerr.Code {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr[tid]
}
