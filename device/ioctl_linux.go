//go:build linux

package device

import (
	"context"
	"path/filepath"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lspecian/vexfs-sub000/abi"
)

// Mount is a Device backed by a mounted VexFS filesystem. Vector files live
// directly under the mount root.
type Mount struct {
	root string
}

// OpenMount opens a VexFS mount rooted at the given directory.
func OpenMount(root string) (*Mount, error) {
	var st unix.Stat_t
	if err := unix.Stat(root, &st); err != nil {
		return nil, &DeviceError{Op: "open mount", Err: err}
	}
	return &Mount{root: root}, nil
}

func (m *Mount) path(name string) string {
	return filepath.Join(m.root, name+".vec")
}

// Open opens or creates the vector file backing a collection.
func (m *Mount) Open(_ context.Context, name string) (Handle, error) {
	fd, err := unix.Open(m.path(name), unix.O_RDWR|unix.O_CREAT, 0o644)
	if err != nil {
		return nil, &DeviceError{Op: "open", Err: err}
	}
	return &fileHandle{fd: fd}, nil
}

// Remove deletes the vector file backing a collection.
func (m *Mount) Remove(_ context.Context, name string) error {
	if err := unix.Unlink(m.path(name)); err != nil {
		if err == unix.ENOENT {
			return &DeviceError{Op: "remove", Err: ErrNoVectorFile}
		}
		return &DeviceError{Op: "remove", Err: err}
	}
	return nil
}

func (m *Mount) Close() error { return nil }

// fileHandle issues ioctls against one vector file descriptor.
//
// This is the single unsafe boundary of the module: raw buffer addresses are
// produced here, written into the packed record, and kept alive with
// runtime.KeepAlive until the syscall returns. Nothing outside this file
// touches raw addresses.
type fileHandle struct {
	fd int
}

func (h *fileHandle) ioctl(op string, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(h.fd), req, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return &DeviceError{Op: op, Err: errno}
	}
}

func (h *fileHandle) SetVectorMeta(_ context.Context, info *abi.VectorFileInfo) error {
	var buf [abi.VectorFileInfoSize]byte
	info.Marshal(&buf)
	return h.ioctl("set_vector_meta", abi.IoctlSetVectorMeta, unsafe.Pointer(&buf[0]))
}

func (h *fileHandle) GetVectorMeta(_ context.Context) (*abi.VectorFileInfo, error) {
	var buf [abi.VectorFileInfoSize]byte
	if err := h.ioctl("get_vector_meta", abi.IoctlGetVectorMeta, unsafe.Pointer(&buf[0])); err != nil {
		return nil, err
	}
	var info abi.VectorFileInfo
	info.Unmarshal(&buf)
	return &info, nil
}

func (h *fileHandle) BatchInsert(_ context.Context, req *abi.BatchInsert) error {
	if len(req.VectorBits) == 0 || len(req.IDs) == 0 {
		return &DeviceError{Op: "batch_insert", Err: unix.EINVAL}
	}

	bitsAddr := uint64(uintptr(unsafe.Pointer(&req.VectorBits[0])))
	idsAddr := uint64(uintptr(unsafe.Pointer(&req.IDs[0])))

	var buf [abi.BatchInsertSize]byte
	req.Pack(&buf, bitsAddr, idsAddr)

	err := h.ioctl("batch_insert", abi.IoctlBatchInsert, unsafe.Pointer(&buf[0]))

	// The kernel reads the buffers through the embedded addresses; they must
	// outlive the syscall.
	runtime.KeepAlive(req.VectorBits)
	runtime.KeepAlive(req.IDs)
	return err
}

func (h *fileHandle) Search(_ context.Context, req *abi.Search) (int, error) {
	if len(req.QueryBits) == 0 || len(req.ResultBits) == 0 || len(req.ResultIDs) == 0 {
		return 0, &DeviceError{Op: "search", Err: unix.EINVAL}
	}

	queryAddr := uint64(uintptr(unsafe.Pointer(&req.QueryBits[0])))
	resultsAddr := uint64(uintptr(unsafe.Pointer(&req.ResultBits[0])))
	idsAddr := uint64(uintptr(unsafe.Pointer(&req.ResultIDs[0])))

	var buf [abi.SearchSize]byte
	req.Pack(&buf, queryAddr, resultsAddr, idsAddr)

	err := h.ioctl("search", abi.IoctlSearch, unsafe.Pointer(&buf[0]))

	runtime.KeepAlive(req.QueryBits)
	runtime.KeepAlive(req.ResultBits)
	runtime.KeepAlive(req.ResultIDs)

	if err != nil {
		return 0, err
	}
	return int(abi.ReadResultCount(&buf)), nil
}

func (h *fileHandle) Close() error {
	if err := unix.Close(h.fd); err != nil {
		return &DeviceError{Op: "close", Err: err}
	}
	return nil
}
