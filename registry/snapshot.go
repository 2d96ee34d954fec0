package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pierrec/lz4/v4"

	"github.com/lspecian/vexfs-sub000/blobstore"
	"github.com/lspecian/vexfs-sub000/codec"
	"github.com/lspecian/vexfs-sub000/distance"
)

// Snapshot blob layout:
//
//	[Magic "VXSN": 4][FormatVersion: 1][CodecNameLen: 1][CodecName]
//	[lz4 frame: codec-encoded snapshotDoc]
//
// The codec name is stored in the header so the payload is self-describing;
// the reader selects the codec by name regardless of what the writer was
// configured with.

var snapshotMagic = [4]byte{'V', 'X', 'S', 'N'}

const snapshotFormatVersion = 1

var (
	errBadSnapshotMagic   = errors.New("bad snapshot magic")
	errBadSnapshotVersion = errors.New("unsupported snapshot format version")
)

type snapshotDoc struct {
	Collections []snapshotCollection `json:"collections"`
}

type snapshotCollection struct {
	Name        string `json:"name"`
	Dimensions  uint32 `json:"dimensions"`
	Metric      uint32 `json:"metric"`
	VectorCount uint64 `json:"vector_count"`
	IDs         []byte `json:"ids"` // serialized roaring64 bitmap
}

// Snapshots persists point-in-time registry state to a blob store.
// Save and Load are safe for concurrent use.
type Snapshots struct {
	store   blobstore.Store
	commits blobstore.CommitStore
	codec   codec.Codec
	seq     atomic.Uint64
}

// NewSnapshots creates a snapshot writer/reader on the given stores.
// If c is nil, codec.Default is used.
func NewSnapshots(store blobstore.Store, commits blobstore.CommitStore, c codec.Codec) *Snapshots {
	if c == nil {
		c = codec.Default
	}
	return &Snapshots{store: store, commits: commits, codec: c}
}

func snapshotName(seq uint64) string {
	return fmt.Sprintf("snap-%06d", seq)
}

// Save writes a snapshot of the registry and commits it as current.
// Returns the snapshot blob name.
func (s *Snapshots) Save(ctx context.Context, r *Registry) (string, error) {
	doc := snapshotDoc{}

	r.mu.RLock()
	for _, c := range r.collections {
		var ids bytes.Buffer
		if _, err := c.ids.WriteTo(&ids); err != nil {
			r.mu.RUnlock()
			return "", fmt.Errorf("serialize ID bitmap: %w", err)
		}
		doc.Collections = append(doc.Collections, snapshotCollection{
			Name:        c.meta.Name,
			Dimensions:  c.meta.Dimensions,
			Metric:      c.meta.Metric.Code(),
			VectorCount: c.meta.VectorCount,
			IDs:         ids.Bytes(),
		})
	}
	r.mu.RUnlock()

	payload, err := s.codec.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	var blob bytes.Buffer
	blob.Write(snapshotMagic[:])
	blob.WriteByte(snapshotFormatVersion)
	blob.WriteByte(byte(len(s.codec.Name())))
	blob.WriteString(s.codec.Name())

	zw := lz4.NewWriter(&blob)
	if _, err := zw.Write(payload); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	name := snapshotName(s.seq.Add(1))
	if err := s.store.Put(ctx, name, blob.Bytes()); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	if err := s.commits.Commit(ctx, name); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return name, nil
}

// Load restores the current snapshot into r, which must be empty.
// Returns false if no snapshot has been committed.
func (s *Snapshots) Load(ctx context.Context, r *Registry) (bool, error) {
	name, err := s.commits.Current(ctx)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	data, err := s.store.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	doc, err := decodeSnapshot(data)
	if err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", name, err)
	}

	for _, sc := range doc.Collections {
		metric, err := distance.FromCode(sc.Metric)
		if err != nil {
			return false, err
		}
		ids := roaring64.New()
		if _, err := ids.ReadFrom(bytes.NewReader(sc.IDs)); err != nil {
			return false, fmt.Errorf("restore ID bitmap for %q: %w", sc.Name, err)
		}
		r.collections[sc.Name] = &collection{
			meta: Meta{
				Name:        sc.Name,
				Dimensions:  sc.Dimensions,
				Metric:      metric,
				VectorCount: sc.VectorCount,
			},
			ids: ids,
		}
	}

	// Continue numbering after the loaded snapshot.
	var seq uint64
	if _, err := fmt.Sscanf(name, "snap-%d", &seq); err == nil {
		s.seq.Store(seq)
	}
	return true, nil
}

func decodeSnapshot(data []byte) (snapshotDoc, error) {
	var doc snapshotDoc
	if len(data) < 6 || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return doc, errBadSnapshotMagic
	}
	if data[4] != snapshotFormatVersion {
		return doc, errBadSnapshotVersion
	}
	nameLen := int(data[5])
	if len(data) < 6+nameLen {
		return doc, errBadSnapshotMagic
	}
	codecName := string(data[6 : 6+nameLen])
	c, ok := codec.ByName(codecName)
	if !ok {
		return doc, fmt.Errorf("unknown snapshot codec %q", codecName)
	}

	zr := lz4.NewReader(bytes.NewReader(data[6+nameLen:]))
	payload, err := io.ReadAll(zr)
	if err != nil {
		return doc, fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := c.Unmarshal(payload, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}
