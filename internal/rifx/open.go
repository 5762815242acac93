package rifx

import (
	"bytes"
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is a container opened for random access. Its contents are
// memory-mapped read-only when the platform allows it.
type File struct {
	data    []byte
	r       *bytes.Reader
	mmapped bool
}

// Open maps path read-only. If mmap is unavailable, the file is read into
// memory instead. The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < HeaderSize {
		return nil, ErrBadFileType
	}
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, errors.New("rifx: file too large to map")
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &File{data: data, r: bytes.NewReader(data), mmapped: true}, nil
	}

	data = make([]byte, size)
	if err := readFullAt(f, data, 0); err != nil {
		return nil, err
	}
	return FromBytes(data), nil
}

// FromBytes wraps an in-memory container.
func FromBytes(b []byte) *File {
	return &File{data: b, r: bytes.NewReader(b)}
}

// ReadAt implements io.ReaderAt over the container bytes.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.r.ReadAt(p, off)
}

// Size is the container length in bytes.
func (f *File) Size() int64 { return int64(len(f.data)) }

// Mapped reports whether the contents are backed by mmap.
func (f *File) Mapped() bool { return f.mmapped }

// Close releases the mapping. Sections read after Close fail.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.r = bytes.NewReader(nil)
	return err
}

var _ io.ReaderAt = (*File)(nil)
