package ws2_32

import (
	"encoding/binary"
	"net"
	"testing"
	"unsafe"

	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winsock"
)

func newTestSubsystem() *Subsystem {
	sock := winsock.New()
	sock.Startup()
	return New(sock, handle.NewTable())
}

func encodeSockAddrIn(family uint16, port uint16, ip [4]byte) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], family)
	binary.BigEndian.PutUint16(buf[2:4], port)
	copy(buf[4:8], ip[:])
	return buf
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestSocketListenConnectAcceptSendRecv(t *testing.T) {
	s := newTestSubsystem()

	serverH, err := s.Socket(winsock.AfInet, winsock.SockStream)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	bindBuf := encodeSockAddrIn(winsock.AfInet, 0, [4]byte{127, 0, 0, 1})
	if err := s.Listen(serverH, addrOf(bindBuf), 1); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	so, _ := s.resolve(serverH)
	tcpAddr, ok := so.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("listener address is not a TCPAddr")
	}

	acceptedCh := make(chan handle.H, 1)
	go func() {
		h, err := s.Accept(serverH)
		if err != nil {
			t.Errorf("Accept failed: %v", err)
			return
		}
		acceptedCh <- h
	}()

	clientH, err := s.Socket(winsock.AfInet, winsock.SockStream)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	connBuf := encodeSockAddrIn(winsock.AfInet, uint16(tcpAddr.Port), [4]byte{127, 0, 0, 1})
	if err := s.Connect(clientH, addrOf(connBuf)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	serverConnH := <-acceptedCh

	sendBuf := []byte("hi")
	if _, err := s.Send(clientH, addrOf(sendBuf), len(sendBuf)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	recvBuf := make([]byte, 2)
	if _, err := s.Recv(serverConnH, addrOf(recvBuf), len(recvBuf)); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(recvBuf) != "hi" {
		t.Fatalf("Recv = %q, want hi", recvBuf)
	}
}
