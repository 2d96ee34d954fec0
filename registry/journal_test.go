package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lspecian/vexfs-sub000/distance"
)

func replayInto(t *testing.T, path string, opts JournalOptions) (*Registry, *Journal) {
	t.Helper()
	r := New(nil)
	j, err := OpenJournal(path, r.Apply, opts)
	require.NoError(t, err)
	r.journal = j
	return r, j
}

func journalRoundTrip(t *testing.T, opts JournalOptions) {
	path := filepath.Join(t.TempDir(), "registry.journal")

	r, j := replayInto(t, path, opts)
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 128, Metric: distance.Cosine}))
	require.NoError(t, r.Create(Meta{Name: "c2", Dimensions: 4, Metric: distance.Euclidean}))

	txn, err := r.BeginInsert("c1")
	require.NoError(t, err)
	require.NoError(t, txn.Commit([]uint64{1, 2, 3}))

	require.NoError(t, r.Delete("c2"))
	require.NoError(t, j.Close())

	// Reopen and replay.
	r2, j2 := replayInto(t, path, opts)
	defer j2.Close()

	meta, err := r2.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, uint32(128), meta.Dimensions)
	assert.Equal(t, distance.Cosine, meta.Metric)
	assert.Equal(t, uint64(3), meta.VectorCount)

	unique, err := r2.UniqueIDs("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), unique)

	_, err = r2.Get("c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalRoundTrip(t *testing.T) {
	journalRoundTrip(t, JournalOptions{})
}

func TestJournalRoundTripCompressed(t *testing.T) {
	journalRoundTrip(t, JournalOptions{Compressed: true})
}

func TestJournalTornTailIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.journal")

	r, j := replayInto(t, path, JournalOptions{})
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 8, Metric: distance.Dot}))
	require.NoError(t, j.Close())

	// Simulate a crash mid-append: garbage after the last intact record.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r2, j2 := replayInto(t, path, JournalOptions{})
	defer j2.Close()

	_, err = r2.Get("c1")
	assert.NoError(t, err)
}

func TestJournalCorruptRecordStopsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.journal")

	r, j := replayInto(t, path, JournalOptions{})
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 8, Metric: distance.Dot}))
	require.NoError(t, r.Create(Meta{Name: "c2", Dimensions: 8, Metric: distance.Dot}))
	require.NoError(t, j.Close())

	// Flip a byte in the second record's payload.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r2, j2 := replayInto(t, path, JournalOptions{})
	defer j2.Close()

	_, err = r2.Get("c1")
	assert.NoError(t, err)
	_, err = r2.Get("c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.journal")

	r, j := replayInto(t, path, JournalOptions{})
	require.NoError(t, r.Create(Meta{Name: "c1", Dimensions: 8, Metric: distance.Dot}))

	require.NoError(t, j.Reset())
	require.NoError(t, r.Create(Meta{Name: "c2", Dimensions: 8, Metric: distance.Dot}))
	require.NoError(t, j.Close())

	// Only records after the reset replay.
	r2, j2 := replayInto(t, path, JournalOptions{})
	defer j2.Close()

	_, err := r2.Get("c1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r2.Get("c2")
	assert.NoError(t, err)
}
