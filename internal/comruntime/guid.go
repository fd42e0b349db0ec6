package comruntime

import "fmt"

// GUID is the 16-byte Windows identifier layout: Data1 (little-endian
// uint32), Data2/Data3 (little-endian uint16), Data4 (8 raw bytes). It
// is hand-defined rather than imported (see DESIGN.md) so citc's COM
// layer has no build-time dependency on a Windows-only package.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func (g GUID) String() string {
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1], g.Data4[2], g.Data4[3], g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// Equal compares two GUIDs field by field.
func (g GUID) Equal(o GUID) bool {
	return g.Data1 == o.Data1 && g.Data2 == o.Data2 && g.Data3 == o.Data3 && g.Data4 == o.Data4
}

// IsZero reports whether g is the all-zero GUID (IID_NULL/GUID_NULL).
func (g GUID) IsZero() bool {
	return g.Equal(GUID{})
}
