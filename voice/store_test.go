package voice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/CS-5/apalto-bot/errors"
)

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	data, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Pairs)
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pairs.json")
	store := NewStore(path)
	created := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	p := &Pair{GuildID: "g", Team1ID: "1", Team2ID: "2", CategoryID: "c", CreatorID: "u", CreatedAt: created}
	require.NoError(t, store.Save(func() *PersistentData {
		return &PersistentData{Pairs: []PairRecord{recordOf(p)}}
	}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")

	data, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, data.Pairs, 1)

	restored := data.Pairs[0].pair()
	assert.Equal(t, p.Key(), restored.Key())
	assert.Equal(t, "c", restored.CategoryID)
	assert.Equal(t, "u", restored.CreatorID)
	assert.True(t, created.Equal(restored.CreatedAt))
	assert.Equal(t, StateActive, restored.State())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStoreReadFailure, apperr.CodeOf(err))
}

func TestNilStoreIsNoop(t *testing.T) {
	store := NewStore("")
	assert.Nil(t, store)
	assert.Empty(t, store.Path())

	data, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Pairs)
	assert.NoError(t, store.Save(func() *PersistentData { return &PersistentData{} }))
}
