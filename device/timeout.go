package device

import (
	"context"
	"time"

	"github.com/lspecian/vexfs-sub000/abi"
)

// WithTimeout wraps a Device so every handle call completes within the given
// bound or fails with ErrTimeout.
//
// An ioctl against a wedged device does not respect context cancellation, so
// the inner call runs on its own goroutine and may still be in flight after
// ErrTimeout is returned. The wrapper keeps the request alive until the inner
// call finishes, preserving the buffer pinning contract; the caller must
// treat a timed-out request's buffers as lost and never reuse them.
func WithTimeout(d Device, timeout time.Duration) Device {
	if timeout <= 0 {
		return d
	}
	return &timeoutDevice{inner: d, timeout: timeout}
}

type timeoutDevice struct {
	inner   Device
	timeout time.Duration
}

func (d *timeoutDevice) Open(ctx context.Context, name string) (Handle, error) {
	h, err := d.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &timeoutHandle{inner: h, timeout: d.timeout}, nil
}

func (d *timeoutDevice) Remove(ctx context.Context, name string) error {
	return d.inner.Remove(ctx, name)
}

func (d *timeoutDevice) Close() error { return d.inner.Close() }

type timeoutHandle struct {
	inner   Handle
	timeout time.Duration
}

// call runs fn with the deadline applied, returning ErrTimeout if fn does not
// finish in time.
func (h *timeoutHandle) call(ctx context.Context, fn func(context.Context) error) error {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

func (h *timeoutHandle) SetVectorMeta(ctx context.Context, info *abi.VectorFileInfo) error {
	return h.call(ctx, func(ctx context.Context) error {
		return h.inner.SetVectorMeta(ctx, info)
	})
}

func (h *timeoutHandle) GetVectorMeta(ctx context.Context) (*abi.VectorFileInfo, error) {
	var info *abi.VectorFileInfo
	err := h.call(ctx, func(ctx context.Context) error {
		var inner error
		info, inner = h.inner.GetVectorMeta(ctx)
		return inner
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (h *timeoutHandle) BatchInsert(ctx context.Context, req *abi.BatchInsert) error {
	return h.call(ctx, func(ctx context.Context) error {
		return h.inner.BatchInsert(ctx, req)
	})
}

func (h *timeoutHandle) Search(ctx context.Context, req *abi.Search) (int, error) {
	var n int
	err := h.call(ctx, func(ctx context.Context) error {
		var inner error
		n, inner = h.inner.Search(ctx, req)
		return inner
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (h *timeoutHandle) Close() error { return h.inner.Close() }
