package ws2_32

import (
	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/internal/handle"
	"github.com/citcrun/citc/internal/winerr"
)

// HostAdapter mirrors internal/abi.HostFunc's shape without importing
// that package.
type HostAdapter func(args [4]uintptr, stackArgs []uintptr) uintptr

func errCode(err error) uintptr {
	if err == nil {
		return 0
	}
	return uintptr(winerr.CodeOf(err))
}

// Register installs every ws2_32.dll export this subsystem implements
// into r, using trampoline to turn each HostAdapter into a real,
// callable machine address.
func (s *Subsystem) Register(r *export.Resolver, trampoline func(HostAdapter) (uintptr, error)) error {
	entries := []struct {
		name string
		sig  string
		fn   HostAdapter
	}{
		{"WSAStartup", "(a0,a1)", func(args [4]uintptr, _ []uintptr) uintptr {
			s.WSAStartup()
			return 0
		}},
		{"WSACleanup", "()", func(args [4]uintptr, _ []uintptr) uintptr {
			return errCode(s.WSACleanup())
		}},
		{"socket", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			h, err := s.Socket(int(int32(args[0])), int(int32(args[1])))
			if err != nil {
				return uintptr(handle.Invalid)
			}
			return uintptr(h)
		}},
		{"listen", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			err := s.Listen(handle.H(args[0]), args[1], int(int32(args[2])))
			return errCode(err)
		}},
		{"accept", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			h, err := s.Accept(handle.H(args[0]))
			if err != nil {
				return uintptr(handle.Invalid)
			}
			return uintptr(h)
		}},
		{"connect", "(a0,a1,a2)", func(args [4]uintptr, _ []uintptr) uintptr {
			err := s.Connect(handle.H(args[0]), args[1])
			return errCode(err)
		}},
		{"send", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			n, err := s.Send(handle.H(args[0]), args[1], int(int32(args[2])))
			if err != nil {
				return ^uintptr(0) // SOCKET_ERROR
			}
			return uintptr(n)
		}},
		{"recv", "(a0,a1,a2,a3)", func(args [4]uintptr, _ []uintptr) uintptr {
			n, err := s.Recv(handle.H(args[0]), args[1], int(int32(args[2])))
			if err != nil {
				return ^uintptr(0)
			}
			return uintptr(n)
		}},
		{"closesocket", "(a0)", func(args [4]uintptr, _ []uintptr) uintptr {
			return errCode(s.CloseSocket(handle.H(args[0])))
		}},
	}

	for _, e := range entries {
		addr, err := trampoline(e.fn)
		if err != nil {
			return err
		}
		r.Register("ws2_32.dll", export.Entry{Name: e.name, Addr: addr, Signature: e.sig})
	}
	return nil
}
