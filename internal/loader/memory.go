package loader

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/citcrun/citc/pkg/pe"
)

// mmapAnon reserves size bytes of anonymous memory, using addr as a
// hint rather than a demand: without MAP_FIXED the kernel grants addr
// when free and silently picks another region otherwise, so this never
// risks clobbering an existing mapping the way a fixed request would.
func mmapAnon(addr uintptr, size int) ([]byte, error) {
	const prot = unix.PROT_READ | unix.PROT_WRITE
	const flags = unix.MAP_PRIVATE | unix.MAP_ANONYMOUS

	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(size), uintptr(prot), uintptr(flags), ^uintptr(0), 0)
	if errno != 0 {
		return nil, fmt.Errorf("loader: mmap: %w", errno)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r1)), size), nil
}

// mapImage allocates the image's virtual range, preferring oh.ImageBase,
// and copies each section's raw bytes in, zero-filling the tail up to
// its virtual size.
func mapImage(f *pe.File, oh pe.ImageOptionalHeader64) (*Image, error) {
	size := int(oh.SizeOfImage)
	if size <= 0 {
		return nil, fmt.Errorf("loader: degenerate SizeOfImage %d", oh.SizeOfImage)
	}

	mem, err := mmapAnon(uintptr(oh.ImageBase), size)
	if err != nil {
		return nil, err
	}

	img := &Image{mem: mem, base: uintptr(unsafe.Pointer(&mem[0])), size: uint32(size)}

	for _, sec := range f.Sections {
		h := sec.Header
		if h.VirtualAddress >= uint32(size) {
			continue
		}
		dst := mem[h.VirtualAddress:]
		if uint32(len(dst)) > h.VirtualSize {
			dst = dst[:h.VirtualSize]
		}

		raw := sec.Data(0, h.SizeOfRawData, f)
		n := copy(dst, raw)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	}

	return img, nil
}

// protectSections applies each section's final read/write/execute
// protection, per the characteristics flags recorded in its header.
// This runs last, after relocation and import binding have finished
// writing into sections that may end up read-only or non-writable.
func protectSections(f *pe.File, img *Image) error {
	for _, sec := range f.Sections {
		h := sec.Header
		if h.VirtualAddress >= img.size {
			continue
		}
		end := h.VirtualAddress + h.VirtualSize
		if end > img.size {
			end = img.size
		}
		if end <= h.VirtualAddress {
			continue
		}

		prot := 0
		if h.Characteristics&pe.ImageScnMemRead != 0 {
			prot |= unix.PROT_READ
		}
		if h.Characteristics&pe.ImageScnMemWrite != 0 {
			prot |= unix.PROT_WRITE
		}
		if h.Characteristics&pe.ImageScnMemExecute != 0 {
			prot |= unix.PROT_EXEC
		}

		if err := unix.Mprotect(img.mem[h.VirtualAddress:end], prot); err != nil {
			return fmt.Errorf("loader: mprotect section %q: %w", sectionName(h), err)
		}
	}
	return nil
}

func sectionName(h pe.ImageSectionHeader) string {
	n := 0
	for n < len(h.Name) && h.Name[n] != 0 {
		n++
	}
	return string(h.Name[:n])
}

func (img *Image) release() error {
	if img.mem == nil {
		return nil
	}
	err := unix.Munmap(img.mem)
	img.mem = nil
	return err
}
