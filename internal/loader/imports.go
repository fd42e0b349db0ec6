package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/citcrun/citc/internal/export"
	"github.com/citcrun/citc/pkg/pe"
)

// bindImports resolves every import descriptor's functions through
// resolver and writes the resolved host trampoline address into the
// image's IAT slot, exactly where the guest's CALL instructions expect
// to find it.
func bindImports(f *pe.File, img *Image, resolver *export.Resolver) error {
	for _, imp := range f.Imports {
		for _, fn := range imp.Functions {
			var (
				entry export.Entry
				err   error
			)
			if fn.ByOrdinal {
				entry, err = resolver.ResolveOrdinal(imp.Name, uint16(fn.Ordinal))
			} else {
				entry, err = resolver.Resolve(imp.Name, fn.Name)
			}
			if err != nil {
				return err
			}

			if uint64(fn.ThunkRVA)+8 > uint64(img.size) {
				return fmt.Errorf("loader: IAT slot at RVA %#x lies outside the image", fn.ThunkRVA)
			}
			binary.LittleEndian.PutUint64(img.mem[fn.ThunkRVA:fn.ThunkRVA+8], uint64(entry.Addr))
		}
	}
	return nil
}
