package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspecian/vexfs-sub000/abi"
	"github.com/lspecian/vexfs-sub000/distance"
	"github.com/lspecian/vexfs-sub000/ieee754"
)

func simHandleForTest(t *testing.T, dims uint32) Handle {
	t.Helper()
	ctx := context.Background()

	sim := NewSim()
	h, err := sim.Open(ctx, "c1")
	require.NoError(t, err)

	err = h.SetVectorMeta(ctx, &abi.VectorFileInfo{
		Dimensions:     dims,
		ElementType:    abi.ElementTypeFloat32,
		StorageFormat:  abi.StorageFormatDense,
		AlignmentBytes: abi.DefaultAlignment,
	})
	require.NoError(t, err)
	return h
}

func insert(t *testing.T, h Handle, dims uint32, ids []uint64, vecs [][]float32, flags uint32) {
	t.Helper()
	bits, err := ieee754.PrepareBatch(vecs)
	require.NoError(t, err)
	err = h.BatchInsert(context.Background(), &abi.BatchInsert{
		VectorBits: bits,
		IDs:        ids,
		Dimensions: dims,
		Flags:      flags,
	})
	require.NoError(t, err)
}

func TestSimInsertAndMeta(t *testing.T) {
	h := simHandleForTest(t, 2)
	insert(t, h, 2, []uint64{1, 2, 3}, [][]float32{{1, 0}, {0, 1}, {1, 1}}, abi.FlagAppend)

	meta, err := h.GetVectorMeta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), meta.VectorCount)
	assert.Equal(t, uint32(2), meta.Dimensions)
}

func TestSimSearchEuclidean(t *testing.T) {
	h := simHandleForTest(t, 2)
	insert(t, h, 2, []uint64{1, 2, 3}, [][]float32{{0, 0}, {3, 4}, {1, 0}}, abi.FlagAppend)

	req := &abi.Search{
		QueryBits:  ieee754.FloatsToBits([]float32{0, 0}),
		Dimensions: 2,
		K:          2,
		SearchType: distance.Euclidean.Code(),
		ResultBits: make([]uint32, 2),
		ResultIDs:  make([]uint64, 2),
	}
	n, err := h.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Best (smallest distance) first: id 1 at distance 0, then id 3 at 1.
	assert.Equal(t, uint64(1), req.ResultIDs[0])
	assert.Equal(t, uint64(3), req.ResultIDs[1])
	assert.Equal(t, float32(0), ieee754.BitsToFloat(req.ResultBits[0]))
	assert.Equal(t, float32(1), ieee754.BitsToFloat(req.ResultBits[1]))
}

func TestSimSearchDotRanksDescending(t *testing.T) {
	h := simHandleForTest(t, 2)
	insert(t, h, 2, []uint64{1, 2}, [][]float32{{1, 0}, {5, 0}}, abi.FlagAppend)

	req := &abi.Search{
		QueryBits:  ieee754.FloatsToBits([]float32{1, 0}),
		Dimensions: 2,
		K:          2,
		SearchType: distance.Dot.Code(),
		ResultBits: make([]uint32, 2),
		ResultIDs:  make([]uint64, 2),
	}
	n, err := h.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, uint64(2), req.ResultIDs[0])
}

func TestSimSearchFewerThanK(t *testing.T) {
	h := simHandleForTest(t, 2)
	insert(t, h, 2, []uint64{7}, [][]float32{{1, 1}}, abi.FlagAppend)

	req := &abi.Search{
		QueryBits:  ieee754.FloatsToBits([]float32{1, 1}),
		Dimensions: 2,
		K:          10,
		SearchType: distance.Euclidean.Code(),
		ResultBits: make([]uint32, 10),
		ResultIDs:  make([]uint64, 10),
	}
	n, err := h.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSimOverwrite(t *testing.T) {
	h := simHandleForTest(t, 2)
	insert(t, h, 2, []uint64{1}, [][]float32{{1, 0}}, abi.FlagAppend)
	insert(t, h, 2, []uint64{1}, [][]float32{{0, 1}}, abi.FlagOverwrite)

	meta, err := h.GetVectorMeta(context.Background())
	require.NoError(t, err)
	// Overwrite replaces the stored vector instead of appending.
	assert.Equal(t, uint32(1), meta.VectorCount)
}

func TestSimRemove(t *testing.T) {
	ctx := context.Background()
	sim := NewSim()
	_, err := sim.Open(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, sim.Remove(ctx, "c1"))

	var de *DeviceError
	err = sim.Remove(ctx, "c1")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "remove", de.Op)
}

func TestSimUnknownSearchType(t *testing.T) {
	h := simHandleForTest(t, 2)
	req := &abi.Search{
		QueryBits:  ieee754.FloatsToBits([]float32{1, 1}),
		Dimensions: 2,
		K:          1,
		SearchType: 9,
		ResultBits: make([]uint32, 1),
		ResultIDs:  make([]uint64, 1),
	}
	_, err := h.Search(context.Background(), req)
	var de *DeviceError
	assert.ErrorAs(t, err, &de)
}
