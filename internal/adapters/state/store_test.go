package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhaler/polywhaler/internal/adapters/state"
	"github.com/polywhaler/polywhaler/internal/domain"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.NewFileStore(path)

	err := store.Save(domain.BotState{
		Bankroll: 965.5,
		Ledger: map[string]domain.PlacementRecord{
			"0xabc": {PlacedAt: 1_700_000_000, EventTime: "2026-08-25T00:00:00Z"},
			"0xdef": {PlacedAt: 1_700_000_100},
		},
	})
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)

	require.NotNil(t, doc.Bankroll)
	assert.Equal(t, 965.5, *doc.Bankroll)
	require.Len(t, doc.PlacedMeta, 2)
	assert.Equal(t, "2026-08-25T00:00:00Z", doc.PlacedMeta["0xabc"].EventTime)
	// La lista plana se mantiene ordenada para lectores viejos
	assert.Equal(t, []string{"0xabc", "0xdef"}, doc.Placed)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := state.NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.Bankroll)
	assert.Empty(t, doc.Placed)
	assert.Empty(t, doc.PlacedMeta)
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	store := state.NewFileStore(path)
	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.Bankroll)
}

func TestFileStore_LoadsLegacyFlatList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{"bankroll": 820, "placed": ["0xaaa", "0xbbb"]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store := state.NewFileStore(path)
	doc, err := store.Load()
	require.NoError(t, err)

	require.NotNil(t, doc.Bankroll)
	assert.Equal(t, 820.0, *doc.Bankroll)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, doc.Placed)
	assert.Empty(t, doc.PlacedMeta)
}

func TestFileStore_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	store := state.NewFileStore(path)

	require.NoError(t, store.Save(domain.BotState{Bankroll: 1000}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := state.NewFileStore(filepath.Join(dir, "state.json"))

	require.NoError(t, store.Save(domain.BotState{Bankroll: 1000}))
	require.NoError(t, store.Save(domain.BotState{Bankroll: 990}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
