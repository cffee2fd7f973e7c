package tagstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groove.click/internal/engine"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "tags.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSchemaExists(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"files", "tags"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, "table %s should be queryable", table)
	}
}

func TestLoadUnknownPath(t *testing.T) {
	store := setupTestStore(t)

	tags, found, err := store.LoadTags("/music/a.wav")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, tags)
}

func TestSaveAndLoadPreservesOrder(t *testing.T) {
	store := setupTestStore(t)

	saved := []engine.Tag{
		{Key: "title", Value: "Song"},
		{Key: "artist", Value: "Band"},
		{Key: "ARTIST", Value: "Other"},
	}
	require.NoError(t, store.SaveTags("/music/a.wav", saved))

	tags, found, err := store.LoadTags("/music/a.wav")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, saved, tags)
}

func TestSaveReplacesTags(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveTags("/a.wav", []engine.Tag{{Key: "title", Value: "Old"}, {Key: "genre", Value: "Rock"}}))
	require.NoError(t, store.SaveTags("/a.wav", []engine.Tag{{Key: "title", Value: "New"}}))

	tags, found, err := store.LoadTags("/a.wav")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []engine.Tag{{Key: "title", Value: "New"}}, tags)
}

func TestSaveEmptyIsRemembered(t *testing.T) {
	store := setupTestStore(t)

	// a file whose tags were all deleted must not fall back to its embedded tags
	require.NoError(t, store.SaveTags("/a.wav", nil))

	tags, found, err := store.LoadTags("/a.wav")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, tags)
}

func TestForget(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveTags("/a.wav", []engine.Tag{{Key: "title", Value: "X"}}))
	require.NoError(t, store.Forget("/a.wav"))

	_, found, err := store.LoadTags("/a.wav")
	require.NoError(t, err)
	assert.False(t, found)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM tags").Scan(&count))
	assert.Zero(t, count, "tags should cascade with their file")
}

func TestStoreSatisfiesEngineTagStore(t *testing.T) {
	var _ engine.TagStore = (*Store)(nil)
}
