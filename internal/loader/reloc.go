package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/citcrun/citc/pkg/pe"
)

// applyRelocations walks the base relocation directory and applies the
// delta between the image's actual and preferred base to every DIR64
// fixup. If the image landed at its preferred base there is nothing to
// do, relocation directory or not.
func applyRelocations(f *pe.File, img *Image, oh pe.ImageOptionalHeader64) error {
	delta := int64(img.base) - int64(oh.ImageBase)
	if delta == 0 {
		return nil
	}

	for _, block := range f.Relocations {
		for _, entry := range block.Entries {
			switch entry.Type {
			case pe.ImageRelBasedAbsolute:
				// Padding entry, skipped by definition.
				continue
			case pe.ImageRelBasedDir64:
				rva := block.Data.VirtualAddress + uint32(entry.Offset)
				if uint64(rva)+8 > uint64(img.size) {
					return fmt.Errorf("loader: relocation at RVA %#x lies outside the image", rva)
				}
				site := img.mem[rva : rva+8]
				val := binary.LittleEndian.Uint64(site)
				binary.LittleEndian.PutUint64(site, uint64(int64(val)+delta))
			default:
				return fmt.Errorf("loader: unsupported relocation type %d", entry.Type)
			}
		}
	}
	return nil
}
