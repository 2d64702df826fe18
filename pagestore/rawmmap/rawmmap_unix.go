//go:build unix

package rawmmap

import "golang.org/x/sys/unix"

// Map creates a shared read/write (or read-only) mapping over fd, starting
// at offset 0, for length bytes.
func Map(fd int, length int, writable bool) (*Region, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(fd, 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}
	return &Region{data: data, fd: fd, size: int64(length), writable: writable}, nil
}

// Sync flushes the mapping to disk synchronously.
func (r *Region) Sync() error {
	if r.data == nil {
		return ErrNotMapped
	}
	return unix.Msync(r.data, unix.MS_SYNC)
}

// Close unmaps the region.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	r.size = 0
	return err
}

// Remap grows (or shrinks) the mapping to newLen bytes. The caller is
// responsible for having already extended the backing file.
func (r *Region) Remap(newLen int) error {
	if r.data == nil {
		return ErrNotMapped
	}
	if newLen <= 0 {
		return ErrInvalidSize
	}
	if err := r.Close0(); err != nil {
		return err
	}
	re, err := Map(r.fd, newLen, r.writable)
	if err != nil {
		return err
	}
	r.data = re.data
	r.size = re.size
	return nil
}

// Close0 unmaps without clearing fd, used internally by Remap.
func (r *Region) Close0() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}
