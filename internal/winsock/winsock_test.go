package winsock

import (
	"net"
	"testing"
)

func TestStartupCleanupRefcounted(t *testing.T) {
	s := New()
	if s.Started() {
		t.Fatalf("Started() true before Startup")
	}
	s.Startup()
	s.Startup()
	if !s.Started() {
		t.Fatalf("Started() false after Startup")
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if !s.Started() {
		t.Fatalf("Started() false after first Cleanup, want still started")
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("second Cleanup failed: %v", err)
	}
	if s.Started() {
		t.Fatalf("Started() true after balanced Cleanup")
	}
	if err := s.Cleanup(); err == nil {
		t.Fatalf("Cleanup succeeded with no outstanding Startup")
	}
}

func TestSocketRequiresStartup(t *testing.T) {
	s := New()
	if _, err := s.Socket(AfInet, SockStream); err == nil {
		t.Fatalf("Socket succeeded before Startup")
	}
	s.Startup()
	if _, err := s.Socket(AfInet, SockStream); err != nil {
		t.Fatalf("Socket failed after Startup: %v", err)
	}
}

func parseAddr(t *testing.T, server *SocketObject) SockAddrIn {
	t.Helper()
	tcpAddr, ok := server.listener.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("listener address is not a TCPAddr")
	}
	var a SockAddrIn
	a.Family = AfInet
	a.Port = uint16(tcpAddr.Port)
	copy(a.Addr[:], tcpAddr.IP.To4())
	return a
}

func TestListenConnectAcceptSendRecvRoundTrip(t *testing.T) {
	s := New()
	s.Startup()

	server, err := s.Socket(AfInet, SockStream)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	if err := server.Listen(SockAddrIn{Family: AfInet, Addr: [4]byte{127, 0, 0, 1}}, 1); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	accepted := make(chan *SocketObject, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := server.Accept()
		if err != nil {
			errCh <- err
			return
		}
		accepted <- c
	}()

	client, err := s.Socket(AfInet, SockStream)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	if err := client.Connect(parseAddr(t, server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var serverSide *SocketObject
	select {
	case serverSide = <-accepted:
	case err := <-errCh:
		t.Fatalf("Accept failed: %v", err)
	}

	if _, err := client.Send([]byte("hi")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := serverSide.Recv(buf); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(buf) != "hi" {
		t.Fatalf("Recv = %q, want hi", buf)
	}
}

func TestGetHostByNameLocalhost(t *testing.T) {
	entry, err := GetHostByName("localhost")
	if err != nil {
		t.Fatalf("GetHostByName failed: %v", err)
	}
	if len(entry.Addresses) == 0 {
		t.Fatalf("no addresses resolved for localhost")
	}
}
