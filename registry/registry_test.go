package registry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspecian/vexfs-sub000/distance"
)

func TestCreateGetDelete(t *testing.T) {
	r := New(nil)

	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 128, Metric: distance.Cosine}))

	err := r.Create(Meta{Name: "c1", Dimensions: 64, Metric: distance.Dot})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	meta, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint32(128), meta.Dimensions)
	assert.Equal(t, distance.Cosine, meta.Metric)
	assert.Equal(t, uint64(0), meta.VectorCount)

	require.NoError(t, r.Delete("c1"))

	_, err = r.Get("c1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.Delete("c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSorted(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, r.Create(Meta{Name: name, Dimensions: 4, Metric: distance.Euclidean}))
	}

	metas := r.List()
	require.Len(t, metas, 3)
	assert.Equal(t, "a", metas[0].Name)
	assert.Equal(t, "b", metas[1].Name)
	assert.Equal(t, "c", metas[2].Name)
}

func TestInsertTxnAdvancesCount(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	for _, size := range []int{10, 5, 7} {
		txn, err := r.BeginInsert("c1")
		require.NoError(t, err)

		ids := make([]uint64, size)
		for i := range ids {
			ids[i] = txn.Meta().VectorCount + uint64(i)
		}
		require.NoError(t, txn.Commit(ids))
	}

	meta, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(22), meta.VectorCount)

	unique, err := r.UniqueIDs("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(22), unique)
}

func TestInsertTxnAbortLeavesCount(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)
	txn.Abort()

	meta, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), meta.VectorCount)

	// The lock must be free after Abort.
	txn, err = r.BeginInsert("c1")
	require.NoError(t, err)
	require.NoError(t, txn.Commit([]uint64{1}))
}

func TestCheckDuplicates(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)
	require.NoError(t, txn.CheckDuplicates([]uint64{1, 2, 3}))
	require.NoError(t, txn.Commit([]uint64{1, 2, 3}))

	txn, err = r.BeginInsert("c1")
	require.NoError(t, err)
	defer txn.Abort()

	var dup *DuplicateIDError
	err = txn.CheckDuplicates([]uint64{4, 2})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, uint64(2), dup.ID)
	assert.Equal(t, 1, dup.Index)
	assert.Equal(t, "c1", dup.Collection)

	// Within-batch duplicate.
	err = txn.CheckDuplicates([]uint64{5, 5})
	assert.ErrorAs(t, err, &dup)
}

func TestBeginInsertUnknownCollection(t *testing.T) {
	r := New(nil)
	_, err := r.BeginInsert("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentInsertsSameCollection(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				txn, err := r.BeginInsert("c1")
				if err != nil {
					t.Error(err)
					return
				}
				id := uint64(w*perWorker + i)
				if err := txn.Commit([]uint64{id}); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	meta, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), meta.VectorCount)
}

func TestAttachJournalReplaysState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.log")

	r := New(nil)
	replayed, err := r.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, replayed)

	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 8, Metric: distance.Dot}))
	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)
	require.NoError(t, txn.Commit([]uint64{1, 2, 3}))
	require.NoError(t, r.Close())

	restored := New(nil)
	replayed, err = restored.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)

	meta, err := restored.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), meta.VectorCount)
	require.NoError(t, restored.Close())

	// A second journal cannot be attached.
	again := New(nil)
	_, err = again.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	_, err = again.AttachJournal(path, JournalOptions{})
	assert.Error(t, err)
	require.NoError(t, again.Close())
}

func TestResetJournalDropsReplayedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.log")

	r := New(nil)
	_, err := r.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Create(Meta{Name: "old", Dimensions: 4, Metric: distance.Euclidean}))
	require.NoError(t, r.ResetJournal())
	require.NoError(t, r.Create(Meta{Name: "new", Dimensions: 4, Metric: distance.Euclidean}))
	require.NoError(t, r.Close())

	restored := New(nil)
	replayed, err := restored.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	_, err = restored.Get("new")
	require.NoError(t, err)
	_, err = restored.Get("old")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, restored.Close())
}

func TestDeleteWaitsForOpenInsertTxn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.log")

	r := New(nil)
	_, err := r.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)

	// Delete must block until the txn finishes, so its journal record lands
	// after the txn's advance record.
	deleted := make(chan error, 1)
	go func() {
		deleted <- r.Delete("c1")
	}()

	select {
	case err := <-deleted:
		t.Fatalf("delete completed during open insert txn: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, txn.Commit([]uint64{1, 2, 3}))
	require.NoError(t, <-deleted)
	require.NoError(t, r.Close())

	// Replay must accept the journal: create, advance, delete — in order.
	restored := New(nil)
	replayed, err := restored.AttachJournal(path, JournalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, replayed)

	_, err = restored.Get("c1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, restored.Close())
}

func TestDeleteDuringBlockedTxnThenRecreate(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 4, Metric: distance.Euclidean}))

	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- r.Delete("c1")
	}()

	txn.Abort()
	require.NoError(t, <-done)

	// A second delete finds nothing.
	assert.ErrorIs(t, r.Delete("c1"), ErrNotFound)
}
