//go:build windows

package rawmmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map creates a file mapping and a full view over fd for length bytes.
func Map(fd int, length int, writable bool) (*Region, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}
	handle := windows.Handle(fd)

	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	sizeHigh := uint32(uint64(length) >> 32)
	sizeLow := uint32(length)

	mapping, err := windows.CreateFileMapping(handle, nil, prot, sizeHigh, sizeLow, nil)
	if err != nil {
		return nil, &Error{Op: "CreateFileMapping", Err: err}
	}

	addr, err := windows.MapViewOfFile(mapping, access, 0, 0, uintptr(length))
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, &Error{Op: "MapViewOfFile", Err: err}
	}

	var data []byte
	sh := (*struct {
		Data uintptr
		Len  int
		Cap  int
	})(unsafe.Pointer(&data))
	sh.Data = addr
	sh.Len = length
	sh.Cap = length

	return &Region{
		data: data, fd: fd, size: int64(length), writable: writable,
		handle: uintptr(handle), mapping: uintptr(mapping),
	}, nil
}

// Sync flushes the view to disk.
func (r *Region) Sync() error {
	if r.data == nil {
		return ErrNotMapped
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&r.data[0])), uintptr(r.size))
}

// Close unmaps the view and closes the mapping handle.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&r.data[0]))
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return &Error{Op: "UnmapViewOfFile", Err: err}
	}
	if r.mapping != 0 {
		windows.CloseHandle(windows.Handle(r.mapping))
		r.mapping = 0
	}
	r.data = nil
	r.size = 0
	return nil
}

// Remap replaces the view with one covering newLen bytes. Windows has no
// mremap, so this always tears down and recreates the mapping.
func (r *Region) Remap(newLen int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	if newLen <= 0 {
		return ErrInvalidSize
	}
	fd, writable := r.fd, r.writable
	if err := r.Close(); err != nil {
		return err
	}
	re, err := Map(fd, newLen, writable)
	if err != nil {
		return err
	}
	*r = *re
	return nil
}
