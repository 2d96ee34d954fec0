package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspecian/vexfs-sub000/abi"
)

// hangDevice blocks forever on every handle call.
type hangDevice struct{}

func (hangDevice) Open(context.Context, string) (Handle, error) { return hangHandle{}, nil }
func (hangDevice) Remove(context.Context, string) error         { return nil }
func (hangDevice) Close() error                                 { return nil }

type hangHandle struct{}

func (hangHandle) SetVectorMeta(ctx context.Context, _ *abi.VectorFileInfo) error {
	<-ctx.Done()
	return ctx.Err()
}

func (hangHandle) GetVectorMeta(ctx context.Context) (*abi.VectorFileInfo, error) {
	select {}
}

func (hangHandle) BatchInsert(ctx context.Context, _ *abi.BatchInsert) error {
	select {}
}

func (hangHandle) Search(ctx context.Context, _ *abi.Search) (int, error) {
	select {}
}

func (hangHandle) Close() error { return nil }

func TestWithTimeoutReturnsErrTimeout(t *testing.T) {
	d := WithTimeout(hangDevice{}, 20*time.Millisecond)
	h, err := d.Open(context.Background(), "c1")
	require.NoError(t, err)

	_, err = h.Search(context.Background(), &abi.Search{})
	assert.ErrorIs(t, err, ErrTimeout)

	err = h.BatchInsert(context.Background(), &abi.BatchInsert{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWithTimeoutPassesThroughFastCalls(t *testing.T) {
	sim := NewSim()
	d := WithTimeout(sim, time.Second)
	ctx := context.Background()

	h, err := d.Open(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, h.SetVectorMeta(ctx, &abi.VectorFileInfo{
		Dimensions:  4,
		ElementType: abi.ElementTypeFloat32,
	}))

	meta, err := h.GetVectorMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), meta.Dimensions)
}

func TestWithTimeoutZeroDisables(t *testing.T) {
	sim := NewSim()
	assert.Equal(t, Device(sim), WithTimeout(sim, 0))
}

func TestWithTimeoutContextCancel(t *testing.T) {
	d := WithTimeout(hangDevice{}, time.Minute)
	h, err := d.Open(context.Background(), "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err = h.SetVectorMeta(ctx, &abi.VectorFileInfo{})
	assert.ErrorIs(t, err, context.Canceled)
}
