package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/citcrun/citc/internal/abi"
	"github.com/citcrun/citc/pkg/pe"
)

// tlsTemplate is the per-image thread-local-storage template: the
// module's TLS index cell and the callback list that must run, in
// directory order, before any thread -- main or spawned -- starts
// executing guest code.
//
// citc does not emulate the TEB/GS-segment machinery real Windows uses
// to make compiler-emitted TLS variable accesses resolve into a
// per-thread data block (out of scope, see DESIGN.md); this template
// exists to satisfy the loader's callback-firing contract, not to make
// `__declspec(thread)` variables actually work across threads.
type tlsTemplate struct {
	callbacks []uintptr
}

// buildTLSTemplate rebases the TLS directory's index cell and callback
// addresses from preferred to actual base. An image with no TLS
// directory gets an empty template -- firing it is a no-op.
func buildTLSTemplate(f *pe.File, img *Image, oh pe.ImageOptionalHeader64) (*tlsTemplate, error) {
	tmpl := &tlsTemplate{}
	if !f.HasTLS {
		return tmpl, nil
	}

	dir, ok := f.TLS.Struct.(pe.ImageTLSDirectory64)
	if !ok {
		return nil, fmt.Errorf("loader: TLS directory is not PE32+ shaped")
	}

	delta := int64(img.base) - int64(oh.ImageBase)

	if dir.AddressOfIndex != 0 {
		indexRVA := uint32(int64(dir.AddressOfIndex) - int64(oh.ImageBase))
		if uint64(indexRVA)+4 <= uint64(img.size) {
			// citc hosts a single module, so the assigned TLS index is
			// always 0.
			binary.LittleEndian.PutUint32(img.mem[indexRVA:indexRVA+4], 0)
		}
	}

	if callbacks, ok := f.TLS.Callbacks.([]uint64); ok {
		for _, va := range callbacks {
			tmpl.callbacks = append(tmpl.callbacks, uintptr(int64(va)+delta))
		}
	}

	return tmpl, nil
}

// fire runs every TLS callback in directory order with (moduleHandle,
// reason, reserved=0), the DllMain-shaped arguments real TLS callbacks
// expect.
func (t *tlsTemplate) fire(img *Image, reason uint32) {
	for _, addr := range t.callbacks {
		abi.CallWithArgs3(addr, img.base, uintptr(reason), 0)
	}
}
