// Package vexfs provides a Go client for the VexFS kernel vector store.
//
// VexFS serves nearest-neighbor search from inside the kernel: vectors live
// in per-collection vector files on a VexFS mount, and all data-plane
// operations go through four fixed-layout ioctl records. This package owns
// everything above that boundary:
//
//   - IEEE-754 bit conversion between Go float32 vectors and the kernel's
//     uint32 bit representation (package ieee754)
//   - distance-metric names and kernel codes (package distance)
//   - packed ioctl record layouts (package abi)
//   - the device boundary itself, with an in-memory Sim for tests
//     (package device)
//   - the collection registry with optional journal + snapshot persistence
//     (package registry)
//
// # Quick start
//
//	ctx := context.Background()
//	client, err := vexfs.New(device.NewSim())
//	if err != nil {
//	    panic(err)
//	}
//	defer client.Close()
//
//	_, err = client.CreateCollection(ctx, "docs", 128, distance.Cosine)
//
//	summary, err := client.InsertPoints(ctx, "docs", []vexfs.Point{
//	    {ID: pk.String("doc-1"), Vector: vec1},
//	    {ID: pk.Uint64(42), Vector: vec2},
//	    {Vector: vec3}, // ID auto-assigned
//	})
//
//	results, err := client.SearchVectors(ctx, "docs", query, 10)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Score)
//	}
//
// Against a real mount, replace device.NewSim() with device.OpenMount(path).
//
// All validation happens before any record is packed or any device call is
// made. Concurrent inserts into one collection are serialized; operations on
// different collections proceed independently.
package vexfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lspecian/vexfs-sub000/abi"
	"github.com/lspecian/vexfs-sub000/blobstore"
	"github.com/lspecian/vexfs-sub000/device"
	"github.com/lspecian/vexfs-sub000/distance"
	"github.com/lspecian/vexfs-sub000/ieee754"
	"github.com/lspecian/vexfs-sub000/internal/conv"
	"github.com/lspecian/vexfs-sub000/internal/resource"
	"github.com/lspecian/vexfs-sub000/pk"
	"github.com/lspecian/vexfs-sub000/registry"
)

// Point is one vector to insert. A zero ID requests auto-assignment.
type Point struct {
	ID     pk.Key
	Vector []float32
}

// InsertSummary reports a successful batch insert.
type InsertSummary struct {
	// IDs holds the kernel identifier of every point, in input order.
	// Auto-assigned and hashed string IDs appear in resolved form.
	IDs []uint64
}

// SearchResult is one search hit. Score carries the kernel-reported value
// for the collection's metric: a distance for Euclidean (smaller is closer),
// a similarity for Cosine and Dot (larger is closer).
type SearchResult struct {
	ID    uint64
	Score float32
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name        string
	Dimensions  int
	Metric      distance.Metric
	VectorCount uint64

	// UniqueIDs counts distinct kernel IDs ever inserted. Diverges from
	// VectorCount when overwrites reuse IDs.
	UniqueIDs uint64
}

// InsertOptions configures one batch insert.
type InsertOptions struct {
	// Overwrite makes the kernel replace vectors whose IDs already exist
	// instead of appending.
	Overwrite bool

	// ValidateDuplicates rejects the batch if any ID repeats within the
	// batch or already exists in the collection. Incompatible with
	// Overwrite, which exists to reuse IDs.
	ValidateDuplicates bool
}

// SearchOptions configures one search.
type SearchOptions struct {
	// Metric overrides the collection's distance metric for this query.
	// The zero value (no override) uses the collection's metric.
	Metric *distance.Metric
}

// WithSearchMetric overrides the distance metric for one search.
func WithSearchMetric(m distance.Metric) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.Metric = &m
	}
}

// Client is the VexFS client facade.
//
// All methods are safe for concurrent use. Construct with New; a Client
// must be closed when no longer needed.
type Client struct {
	dev       device.Device
	registry  *registry.Registry
	snapshots *registry.Snapshots
	ctrl      *resource.Controller
	metrics   MetricsCollector
	logger    *Logger

	mu      sync.Mutex
	handles map[string]device.Handle
	closed  bool
}

// New creates a Client on the given device.
//
// When WithSnapshots and/or WithJournal are configured, the registry is
// restored before New returns: the latest committed snapshot first, then the
// journal tail on top of it.
func New(dev device.Device, optFns ...Option) (*Client, error) {
	opts := applyOptions(optFns)

	if opts.timeout > 0 {
		dev = device.WithTimeout(dev, opts.timeout)
	}

	c := &Client{
		dev:      dev,
		registry: registry.New(nil),
		ctrl:     resource.NewController(opts.resource),
		metrics:  opts.metricsCollector,
		logger:   opts.logger,
		handles:  make(map[string]device.Handle),
	}

	ctx := context.Background()

	if opts.snapshotStore != nil {
		commits := opts.snapshotCommits
		if commits == nil {
			cs, ok := opts.snapshotStore.(blobstore.CommitStore)
			if !ok {
				return nil, fmt.Errorf("vexfs: snapshot store %T tracks no current snapshot; pass a commit store", opts.snapshotStore)
			}
			commits = cs
		}
		c.snapshots = registry.NewSnapshots(opts.snapshotStore, commits, opts.codec)

		if _, err := c.snapshots.Load(ctx, c.registry); err != nil {
			return nil, fmt.Errorf("vexfs: restore snapshot: %w", err)
		}
	}

	if opts.journalPath != "" {
		jopts := registry.JournalOptions{}
		for _, fn := range opts.journalOptions {
			if fn != nil {
				fn(&jopts)
			}
		}
		replayed, err := c.registry.AttachJournal(opts.journalPath, jopts)
		c.logger.LogRecovery(ctx, replayed, err)
		if err != nil {
			return nil, fmt.Errorf("vexfs: replay journal: %w", err)
		}
	}

	return c, nil
}

// handle returns the cached device handle for a collection, opening it on
// first use.
func (c *Client) handle(ctx context.Context, name string) (device.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if h, ok := c.handles[name]; ok {
		return h, nil
	}
	h, err := c.dev.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	c.handles[name] = h
	return h, nil
}

// dropHandle closes and forgets a collection's cached handle.
func (c *Client) dropHandle(name string) {
	c.mu.Lock()
	h, ok := c.handles[name]
	delete(c.handles, name)
	c.mu.Unlock()
	if ok {
		_ = h.Close()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CreateCollection registers a collection and configures its vector file.
//
// dimensions must be within 1..65536. Fails with ErrAlreadyExists if the
// name is taken.
func (c *Client) CreateCollection(ctx context.Context, name string, dimensions int, metric distance.Metric) (info CollectionInfo, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordCreateCollection(time.Since(start), err)
		c.logger.LogCreateCollection(ctx, name, dimensions, metric.String(), err)
	}()

	if c.isClosed() {
		return CollectionInfo{}, ErrClosed
	}
	if name == "" {
		return CollectionInfo{}, errors.New("collection name must not be empty")
	}
	if dimensions < abi.MinDimensions || dimensions > abi.MaxDimensions {
		return CollectionInfo{}, &ieee754.DimensionError{Dimension: dimensions}
	}
	if !metric.Valid() {
		return CollectionInfo{}, &distance.UnsupportedDistanceError{Code: metric.Code(), HasCode: true}
	}

	dims32, err := conv.IntToUint32(dimensions)
	if err != nil {
		return CollectionInfo{}, err
	}

	meta := registry.Meta{
		Name:       name,
		Dimensions: dims32,
		Metric:     metric,
	}
	if err := c.registry.Create(meta); err != nil {
		return CollectionInfo{}, err
	}

	// Registry first, device second: if configuring the vector file fails,
	// the registration rolls back and the name stays free.
	if err := c.configureVectorFile(ctx, name, dims32); err != nil {
		_ = c.registry.Delete(name)
		c.dropHandle(name)
		return CollectionInfo{}, err
	}

	return CollectionInfo{
		Name:       name,
		Dimensions: dimensions,
		Metric:     metric,
	}, nil
}

func (c *Client) configureVectorFile(ctx context.Context, name string, dimensions uint32) error {
	h, err := c.handle(ctx, name)
	if err != nil {
		return err
	}

	if err := c.ctrl.Acquire(ctx); err != nil {
		return err
	}
	defer c.ctrl.Release()

	return h.SetVectorMeta(ctx, &abi.VectorFileInfo{
		Dimensions:      dimensions,
		ElementType:     abi.ElementTypeFloat32,
		StorageFormat:   abi.StorageFormatDense,
		CompressionType: abi.CompressionNone,
		AlignmentBytes:  abi.DefaultAlignment,
	})
}

// GetCollectionInfo returns a collection's metadata.
// Fails with ErrNotFound for unknown names.
func (c *Client) GetCollectionInfo(_ context.Context, name string) (CollectionInfo, error) {
	if c.isClosed() {
		return CollectionInfo{}, ErrClosed
	}

	meta, err := c.registry.Get(name)
	if err != nil {
		return CollectionInfo{}, err
	}
	unique, err := c.registry.UniqueIDs(name)
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:        meta.Name,
		Dimensions:  int(meta.Dimensions),
		Metric:      meta.Metric,
		VectorCount: meta.VectorCount,
		UniqueIDs:   unique,
	}, nil
}

// ListCollections returns all collections sorted by name.
func (c *Client) ListCollections(_ context.Context) ([]CollectionInfo, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	metas := c.registry.List()
	infos := make([]CollectionInfo, 0, len(metas))
	for _, meta := range metas {
		unique, err := c.registry.UniqueIDs(meta.Name)
		if err != nil {
			// Deleted between List and UniqueIDs.
			continue
		}
		infos = append(infos, CollectionInfo{
			Name:        meta.Name,
			Dimensions:  int(meta.Dimensions),
			Metric:      meta.Metric,
			VectorCount: meta.VectorCount,
			UniqueIDs:   unique,
		})
	}
	return infos, nil
}

// DeleteCollection removes a collection and its vector file.
// Fails with ErrNotFound for unknown names.
func (c *Client) DeleteCollection(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordDeleteCollection(time.Since(start), err)
		c.logger.LogDeleteCollection(ctx, name, err)
	}()

	if c.isClosed() {
		return ErrClosed
	}
	if _, err := c.registry.Get(name); err != nil {
		return err
	}

	c.dropHandle(name)

	if err := c.ctrl.Acquire(ctx); err != nil {
		return err
	}
	err = c.dev.Remove(ctx, name)
	c.ctrl.Release()
	// A registered collection without a vector file happens when the
	// registry was restored against a fresh mount. The registry entry is
	// what the caller asked to delete.
	if err != nil && !errors.Is(err, device.ErrNoVectorFile) {
		return err
	}

	return c.registry.Delete(name)
}

// InsertPoints inserts a batch of points into a collection.
//
// Every point must carry a vector of the collection's dimension. IDs may be
// explicit (numeric pass-through, strings hashed to a stable 63-bit value)
// or absent, in which case they are assigned from the collection's current
// vector count plus the point's offset in the batch.
//
// The batch is all-or-nothing: on any error nothing is inserted and the
// vector count is unchanged. On success the count advances by the batch
// size. Concurrent inserts into the same collection are serialized.
func (c *Client) InsertPoints(ctx context.Context, collection string, points []Point, optFns ...func(*InsertOptions)) (sum InsertSummary, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordInsert(len(points), time.Since(start), err)
		c.logger.LogInsert(ctx, collection, len(points), err)
	}()

	if c.isClosed() {
		return InsertSummary{}, ErrClosed
	}
	if len(points) == 0 {
		return InsertSummary{}, ErrEmptyBatch
	}

	var iopts InsertOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&iopts)
		}
	}
	if iopts.Overwrite && iopts.ValidateDuplicates {
		return InsertSummary{}, fmt.Errorf("%w: overwrite and validate duplicates", ErrConflictingInsertOptions)
	}

	txn, err := c.registry.BeginInsert(collection)
	if err != nil {
		return InsertSummary{}, err
	}
	defer txn.Abort() // no-op after Commit

	meta := txn.Meta()

	vectors := make([][]float32, len(points))
	for i, p := range points {
		if p.Vector == nil {
			return InsertSummary{}, fmt.Errorf("point %d: %w", i, ErrMissingVector)
		}
		if uint32(len(p.Vector)) != meta.Dimensions {
			return InsertSummary{}, &ieee754.DimensionMismatchError{
				Expected: int(meta.Dimensions),
				Actual:   len(p.Vector),
				Index:    i,
			}
		}
		vectors[i] = p.Vector
	}

	bits, err := ieee754.PrepareBatch(vectors)
	if err != nil {
		return InsertSummary{}, err
	}

	ids := make([]uint64, len(points))
	for i, p := range points {
		if p.ID.IsZero() {
			ids[i] = meta.VectorCount + uint64(i)
		} else {
			ids[i] = p.ID.Kernel()
		}
	}

	flags := uint32(abi.FlagAppend)
	if iopts.Overwrite {
		flags = abi.FlagOverwrite
	}
	if iopts.ValidateDuplicates {
		flags |= abi.FlagValidate
		if err := txn.CheckDuplicates(ids); err != nil {
			return InsertSummary{}, err
		}
	}

	h, err := c.handle(ctx, collection)
	if err != nil {
		return InsertSummary{}, err
	}

	req := &abi.BatchInsert{
		VectorBits: bits,
		IDs:        ids,
		Dimensions: meta.Dimensions,
		Flags:      flags,
	}

	if err := c.ctrl.Acquire(ctx); err != nil {
		return InsertSummary{}, err
	}
	err = h.BatchInsert(ctx, req)
	c.ctrl.Release()
	if err != nil {
		return InsertSummary{}, err
	}

	if err := txn.Commit(ids); err != nil {
		return InsertSummary{}, err
	}
	return InsertSummary{IDs: ids}, nil
}

// SearchVectors runs a nearest-neighbor search and returns up to limit
// results in the kernel-reported order, closest first. Results are never
// re-sorted here; the kernel defines the order.
//
// limit must be within 1..1000.
func (c *Client) SearchVectors(ctx context.Context, collection string, query []float32, limit int, optFns ...func(*SearchOptions)) (results []SearchResult, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordSearch(limit, time.Since(start), err)
		c.logger.LogSearch(ctx, collection, limit, len(results), err)
	}()

	if c.isClosed() {
		return nil, ErrClosed
	}
	if limit < abi.MinLimit || limit > abi.MaxLimit {
		return nil, &InvalidLimitError{Limit: limit}
	}

	var sopts SearchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&sopts)
		}
	}

	meta, err := c.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if uint32(len(query)) != meta.Dimensions {
		return nil, &ieee754.DimensionMismatchError{
			Expected: int(meta.Dimensions),
			Actual:   len(query),
			Index:    -1,
		}
	}

	metric := meta.Metric
	if sopts.Metric != nil {
		metric = *sopts.Metric
		if !metric.Valid() {
			return nil, &distance.UnsupportedDistanceError{Code: metric.Code(), HasCode: true}
		}
	}

	bits, err := ieee754.PrepareVector(query)
	if err != nil {
		return nil, err
	}

	k32, err := conv.IntToUint32(limit)
	if err != nil {
		return nil, err
	}

	h, err := c.handle(ctx, collection)
	if err != nil {
		return nil, err
	}

	// Result buffers are owned by this call alone; the kernel writes into
	// them until Search returns.
	req := &abi.Search{
		QueryBits:  bits,
		Dimensions: meta.Dimensions,
		K:          k32,
		SearchType: metric.Code(),
		ResultBits: make([]uint32, limit),
		ResultIDs:  make([]uint64, limit),
	}

	if err := c.ctrl.Acquire(ctx); err != nil {
		return nil, err
	}
	n, err := h.Search(ctx, req)
	c.ctrl.Release()
	if err != nil {
		return nil, err
	}
	if n > limit {
		n = limit
	}

	results = make([]SearchResult, n)
	for i := 0; i < n; i++ {
		results[i] = SearchResult{
			ID:    req.ResultIDs[i],
			Score: ieee754.BitsToFloat(req.ResultBits[i]),
		}
	}
	return results, nil
}

// GetVectorMetadata reads a collection's vector file metadata as the kernel
// sees it, including the kernel-side vector count.
func (c *Client) GetVectorMetadata(ctx context.Context, collection string) (*abi.VectorFileInfo, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if _, err := c.registry.Get(collection); err != nil {
		return nil, err
	}

	h, err := c.handle(ctx, collection)
	if err != nil {
		return nil, err
	}

	if err := c.ctrl.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.ctrl.Release()

	return h.GetVectorMeta(ctx)
}

// Snapshot writes a registry snapshot to the configured store, commits it as
// current, and truncates the journal. Returns the snapshot blob name.
// Requires WithSnapshots.
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	if c.snapshots == nil {
		return "", errors.New("vexfs: no snapshot store configured")
	}

	name, err := c.snapshots.Save(ctx, c.registry)
	c.logger.LogSnapshot(ctx, name, err)
	if err != nil {
		return "", err
	}
	if err := c.registry.ResetJournal(); err != nil {
		return name, fmt.Errorf("vexfs: snapshot saved but journal reset failed: %w", err)
	}
	return name, nil
}

// Close releases all device handles, the device, and the registry journal.
// The client is unusable afterwards; Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.registry.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
