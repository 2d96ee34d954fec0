package device

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lspecian/vexfs-sub000/abi"
	"github.com/lspecian/vexfs-sub000/distance"
	"github.com/lspecian/vexfs-sub000/ieee754"
)

// Sim is an in-memory stand-in for the VexFS kernel module. It stores vector
// bit patterns per collection file and serves exact search with the scalar
// distance kernels, reporting results in the same order the kernel would
// (best score first).
//
// Thread-safe. Intended for tests and development without the kernel module.
type Sim struct {
	mu    sync.Mutex
	files map[string]*simFile
}

type simFile struct {
	mu   sync.Mutex
	meta abi.VectorFileInfo
	ids  []uint64
	vecs [][]uint32 // one bit-vector per id, parallel to ids
	byID map[uint64]int
}

// NewSim creates an empty simulated device.
func NewSim() *Sim {
	return &Sim{files: make(map[string]*simFile)}
}

// Open opens or creates the simulated vector file for a collection.
func (s *Sim) Open(_ context.Context, name string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[name]
	if !ok {
		f = &simFile{byID: make(map[uint64]int)}
		s.files[name] = f
	}
	return &simHandle{f: f}, nil
}

// Remove deletes the simulated vector file for a collection.
func (s *Sim) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[name]; !ok {
		return &DeviceError{Op: "remove", Err: ErrNoVectorFile}
	}
	delete(s.files, name)
	return nil
}

func (s *Sim) Close() error { return nil }

type simHandle struct {
	f *simFile
}

func (h *simHandle) SetVectorMeta(_ context.Context, info *abi.VectorFileInfo) error {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()

	if info.ElementType != abi.ElementTypeFloat32 {
		return &DeviceError{Op: "set_vector_meta", Err: errors.New("unsupported element type")}
	}
	h.f.meta = *info
	return nil
}

func (h *simHandle) GetVectorMeta(_ context.Context) (*abi.VectorFileInfo, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()

	meta := h.f.meta
	meta.VectorCount = uint32(len(h.f.ids))
	return &meta, nil
}

func (h *simHandle) BatchInsert(_ context.Context, req *abi.BatchInsert) error {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()

	dims := int(req.Dimensions)
	if dims == 0 || len(req.VectorBits) != dims*len(req.IDs) {
		return &DeviceError{Op: "batch_insert", Err: errors.New("inconsistent batch geometry")}
	}
	if h.f.meta.Dimensions != 0 && req.Dimensions != h.f.meta.Dimensions {
		return &DeviceError{Op: "batch_insert", Err: errors.New("dimension mismatch")}
	}

	for i, id := range req.IDs {
		vec := make([]uint32, dims)
		copy(vec, req.VectorBits[i*dims:(i+1)*dims])

		if at, ok := h.f.byID[id]; ok && req.Flags&abi.FlagOverwrite != 0 {
			h.f.vecs[at] = vec
			continue
		}
		h.f.byID[id] = len(h.f.ids)
		h.f.ids = append(h.f.ids, id)
		h.f.vecs = append(h.f.vecs, vec)
	}
	return nil
}

func (h *simHandle) Search(_ context.Context, req *abi.Search) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()

	metric, err := distance.FromCode(req.SearchType)
	if err != nil {
		return 0, &DeviceError{Op: "search", Err: err}
	}
	fn, err := distance.Provider(metric)
	if err != nil {
		return 0, &DeviceError{Op: "search", Err: err}
	}
	if len(req.QueryBits) != int(req.Dimensions) {
		return 0, &DeviceError{Op: "search", Err: errors.New("query dimension mismatch")}
	}

	query := ieee754.BitsToFloats(req.QueryBits)

	type scored struct {
		id    uint64
		score float32
	}
	scoredAll := make([]scored, 0, len(h.f.ids))
	for i, id := range h.f.ids {
		if len(h.f.vecs[i]) != len(query) {
			continue
		}
		v := ieee754.BitsToFloats(h.f.vecs[i])
		scoredAll = append(scoredAll, scored{id: id, score: fn(query, v)})
	}

	asc := distance.Ascending(metric)
	sort.SliceStable(scoredAll, func(i, j int) bool {
		if asc {
			return scoredAll[i].score < scoredAll[j].score
		}
		return scoredAll[i].score > scoredAll[j].score
	})

	n := len(scoredAll)
	if k := int(req.K); n > k {
		n = k
	}
	if n > len(req.ResultBits) || n > len(req.ResultIDs) {
		return 0, &DeviceError{Op: "search", Err: errors.New("result buffers too small")}
	}
	for i := 0; i < n; i++ {
		req.ResultIDs[i] = scoredAll[i].id
		req.ResultBits[i] = ieee754.FloatToBits(scoredAll[i].score)
	}
	return n, nil
}

func (h *simHandle) Close() error { return nil }
