package levels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/models"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.yaml"))
	all, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	body := `
levels:
  EURUSD:
    - id: r1
      price: 1.1000
      type: above
      description: "Weekly high"
    - id: s1
      price: 1.0800
      type: below
      recurring: true
      group: "zone"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	all, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, all["EURUSD"], 2)
	assert.Equal(t, "r1", all["EURUSD"][0].ID)
	assert.Equal(t, models.LevelAbove, all["EURUSD"][0].Direction)
	assert.True(t, all["EURUSD"][1].Recurring)
	assert.Equal(t, "zone", all["EURUSD"][1].Group)
}

func TestStoreLoadSkipsInvalidLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	body := `
levels:
  EURUSD:
    - id: bad
      price: 1.1
      type: sideways
    - id: good
      price: 1.1000
      type: above
  GBPUSD:
    - id: broken
      price: -1
      type: below
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	all, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, all["EURUSD"], 1)
	assert.Equal(t, "good", all["EURUSD"][0].ID)
	// A symbol whose every entry is invalid disappears entirely.
	assert.NotContains(t, all, "GBPUSD")
}

func TestStoreSaveRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "levels.yaml"))
	in := map[string][]models.PriceLevel{
		"GBPUSD": {{ID: "r1", Price: 1.2500, Direction: models.LevelAbove}},
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReplaceDynamicKeepsManualLevels(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "levels.yaml"))
	require.NoError(t, s.Save(map[string][]models.PriceLevel{
		"EURUSD": {
			{ID: "manual", Price: 1.1000, Direction: models.LevelAbove},
			{ID: "auto_res_1.12000", Price: 1.1200, Direction: models.LevelAbove, Dynamic: true},
		},
	}))

	require.NoError(t, s.ReplaceDynamic("EURUSD", []models.PriceLevel{
		{ID: "auto_sup_1.09000", Price: 1.0900, Direction: models.LevelBelow, Dynamic: true},
	}))

	all, err := s.Load()
	require.NoError(t, err)
	require.Len(t, all["EURUSD"], 2)

	ids := []string{all["EURUSD"][0].ID, all["EURUSD"][1].ID}
	assert.Contains(t, ids, "manual")
	assert.Contains(t, ids, "auto_sup_1.09000")
	assert.NotContains(t, ids, "auto_res_1.12000")
}
