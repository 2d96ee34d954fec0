// Package registry owns the collection-name -> metadata mapping.
//
// This is the only mutable process-wide state of the client. All mutation
// goes through the Registry under explicit locks: a global lock guards the
// name map, and each collection carries its own insert lock so concurrent
// inserts into one collection are serialized (the count read, the device
// call, and the count advance are not atomic otherwise) while inserts into
// different collections proceed independently.
//
// State survives restarts through an optional journal (journal.go) and
// snapshots (snapshot.go).
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/lspecian/vexfs-sub000/distance"
)

// Meta describes one collection.
type Meta struct {
	Name        string
	Dimensions  uint32
	Metric      distance.Metric
	VectorCount uint64
}

type collection struct {
	insertMu sync.Mutex // serializes inserts into this collection
	meta     Meta
	ids      *roaring64.Bitmap // kernel IDs ever inserted
}

// Registry is the collection registry.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*collection
	journal     *Journal // nil when not persisted
}

// New creates an empty registry. If journal is non-nil, existing records
// must already have been replayed into the registry via Apply (see
// OpenJournal) and subsequent mutations are appended to it.
func New(journal *Journal) *Registry {
	return &Registry{
		collections: make(map[string]*collection),
		journal:     journal,
	}
}

// AttachJournal opens the journal at path, replays its records on top of
// the registry's current state, and appends all subsequent mutations to it.
// Restore a snapshot first when one exists; the journal holds only the
// records written after it. Returns the number of records replayed.
func (r *Registry) AttachJournal(path string, opts JournalOptions) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal != nil {
		return 0, errors.New("journal already attached")
	}

	replayed := 0
	j, err := OpenJournal(path, func(rec Record) error {
		if err := r.Apply(rec); err != nil {
			return err
		}
		replayed++
		return nil
	}, opts)
	if err != nil {
		return replayed, err
	}
	r.journal = j
	return replayed, nil
}

// Apply replays one journal record into in-memory state without journaling
// it again. Used during OpenJournal replay and snapshot restore.
func (r *Registry) Apply(rec Record) error {
	switch rec.Op {
	case OpCreate:
		metric, err := distance.FromCode(rec.Metric)
		if err != nil {
			return err
		}
		r.collections[rec.Name] = &collection{
			meta: Meta{Name: rec.Name, Dimensions: rec.Dimensions, Metric: metric},
			ids:  roaring64.New(),
		}
	case OpDelete:
		delete(r.collections, rec.Name)
	case OpAdvance:
		c, ok := r.collections[rec.Name]
		if !ok {
			return fmt.Errorf("advance for unknown collection %q", rec.Name)
		}
		c.meta.VectorCount += uint64(len(rec.IDs))
		c.ids.AddMany(rec.IDs)
	default:
		return errUnknownOp
	}
	return nil
}

// Create registers a collection. Fails with ErrAlreadyExists if the name is
// taken.
func (r *Registry) Create(meta Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[meta.Name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, meta.Name)
	}

	meta.VectorCount = 0
	if r.journal != nil {
		rec := Record{Op: OpCreate, Name: meta.Name, Dimensions: meta.Dimensions, Metric: meta.Metric.Code()}
		if err := r.journal.Append(rec); err != nil {
			return fmt.Errorf("journal create: %w", err)
		}
	}
	r.collections[meta.Name] = &collection{meta: meta, ids: roaring64.New()}
	return nil
}

// Get returns a collection's metadata.
func (r *Registry) Get(name string) (Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return Meta{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.meta, nil
}

// UniqueIDs returns the number of distinct kernel IDs ever inserted.
func (r *Registry) UniqueIDs(name string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.ids.GetCardinality(), nil
}

// List returns all collections' metadata sorted by name.
func (r *Registry) List() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Meta, 0, len(r.collections))
	for _, c := range r.collections {
		metas = append(metas, c.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// Delete unregisters a collection. It waits out any open insert txn on the
// collection first: a delete that jumped ahead of an in-flight insert would
// journal OpDelete before the insert's OpAdvance, and replay would then see
// an advance for a name that no longer exists.
func (r *Registry) Delete(name string) error {
	r.mu.RLock()
	c, ok := r.collections[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	// Same order as BeginInsert and Commit: insertMu before mu.
	c.insertMu.Lock()
	defer c.insertMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// The collection may have been deleted, or deleted and recreated, while
	// we waited for the insert lock.
	if r.collections[name] != c {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if r.journal != nil {
		if err := r.journal.Append(Record{Op: OpDelete, Name: name}); err != nil {
			return fmt.Errorf("journal delete: %w", err)
		}
	}
	delete(r.collections, name)
	return nil
}

// InsertTxn holds a collection's insert lock between validation and the
// count advance, bracketing the device call.
type InsertTxn struct {
	r    *Registry
	c    *collection
	done bool
}

// BeginInsert acquires the collection's insert lock. The caller must finish
// with Commit or Abort. While the txn is open, other inserts into the same
// collection block; inserts into other collections do not.
func (r *Registry) BeginInsert(name string) (*InsertTxn, error) {
	r.mu.RLock()
	c, ok := r.collections[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	c.insertMu.Lock()

	// The collection may have been deleted between the lookup and the lock.
	r.mu.RLock()
	_, stillThere := r.collections[name]
	r.mu.RUnlock()
	if !stillThere {
		c.insertMu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return &InsertTxn{r: r, c: c}, nil
}

// Meta returns the collection metadata as of lock acquisition.
func (t *InsertTxn) Meta() Meta {
	return t.c.meta
}

// CheckDuplicates fails if any ID is already in the collection or repeats
// within the batch.
func (t *InsertTxn) CheckDuplicates(ids []uint64) error {
	seen := make(map[uint64]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return &DuplicateIDError{Collection: t.c.meta.Name, ID: id, Index: i}
		}
		if t.c.ids.Contains(id) {
			return &DuplicateIDError{Collection: t.c.meta.Name, ID: id, Index: i}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Commit records a successful batch insert: the vector count advances by the
// batch size and the IDs join the collection bitmap. This is the only place
// vector counts mutate.
func (t *InsertTxn) Commit(ids []uint64) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.c.insertMu.Unlock()

	if t.r.journal != nil {
		rec := Record{Op: OpAdvance, Name: t.c.meta.Name, IDs: ids}
		if err := t.r.journal.Append(rec); err != nil {
			return fmt.Errorf("journal advance: %w", err)
		}
	}

	t.r.mu.Lock()
	t.c.meta.VectorCount += uint64(len(ids))
	t.c.ids.AddMany(ids)
	t.r.mu.Unlock()
	return nil
}

// Abort releases the insert lock without mutating state. Called when
// validation or the device call failed.
func (t *InsertTxn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.c.insertMu.Unlock()
}

// ResetJournal truncates the attached journal. Call right after a snapshot
// commits so the journal only carries records newer than the snapshot.
// No-op without a journal.
func (r *Registry) ResetJournal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal == nil {
		return nil
	}
	return r.journal.Reset()
}

// Close closes the journal, if any.
func (r *Registry) Close() error {
	if r.journal != nil {
		return r.journal.Close()
	}
	return nil
}
