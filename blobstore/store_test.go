package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s interface {
	Store
	CommitStore
}) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "snap-000001", []byte("one")))
	require.NoError(t, s.Put(ctx, "snap-000002", []byte("two")))
	require.NoError(t, s.Put(ctx, "journal-000001", []byte("j")))

	data, err := s.Get(ctx, "snap-000002")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	// Overwrite.
	require.NoError(t, s.Put(ctx, "snap-000002", []byte("two'")))
	data, err = s.Get(ctx, "snap-000002")
	require.NoError(t, err)
	assert.Equal(t, []byte("two'"), data)

	names, err := s.List(ctx, "snap-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"snap-000001", "snap-000002"}, names)

	// Commit pointer.
	_, err = s.Current(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Commit(ctx, "snap-000002"))
	current, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-000002", current)

	// Delete is idempotent.
	require.NoError(t, s.Delete(ctx, "snap-000001"))
	require.NoError(t, s.Delete(ctx, "snap-000001"))
	_, err = s.Get(ctx, "snap-000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}

func TestLocalStoreCurrentExcludedFromList(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "snap-000001", []byte("x")))
	require.NoError(t, s.Commit(ctx, "snap-000001"))

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap-000001"}, names)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "b", data))
	data[0] = 'x'

	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
