package raffle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `
name: chest-common
normalization: relative
seed: 77
items:
  - id: coin
    label: Gold Coin
    weight: 10
    groups: [currency]
  - id: gem
    weight: 1
    meta:
      tier: a
pity:
  gem:
    threshold: 4
    increment: 0.5
    cap: 3
exclusions: [coin]
`

func writeTable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTableFromBytes(t *testing.T) {
	table, err := raffle.LoadTableFromBytes([]byte(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, "chest-common", table.Name)
	assert.Equal(t, "relative", table.Normalization)
	require.NotNil(t, table.Seed)
	assert.Equal(t, int64(77), *table.Seed)
	require.Len(t, table.Items, 2)
	assert.Equal(t, "Gold Coin", table.Items[0].Label)
	assert.Equal(t, []string{"currency"}, table.Items[0].Groups)
	assert.Equal(t, "a", table.Items[1].Meta["tier"])
	require.Contains(t, table.Pity, "gem")
	require.NotNil(t, table.Pity["gem"].Cap)
	assert.Equal(t, 3.0, *table.Pity["gem"].Cap)
	assert.Equal(t, []string{"coin"}, table.Exclusions)
}

func TestLoadTableFromBytes_BadYAML(t *testing.T) {
	_, err := raffle.LoadTableFromBytes([]byte("items: [unclosed"))
	assert.Error(t, err)
}

func TestTableFile_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*raffle.TableFile)
		wantMsg string
	}{
		{"empty name", func(tbl *raffle.TableFile) { tbl.Name = "" }, "name"},
		{"no items", func(tbl *raffle.TableFile) { tbl.Items = nil }, "items"},
		{"empty item id", func(tbl *raffle.TableFile) { tbl.Items[0].ID = "" }, "id"},
		{"duplicate id", func(tbl *raffle.TableFile) { tbl.Items[1].ID = tbl.Items[0].ID }, "duplicate"},
		{"negative weight", func(tbl *raffle.TableFile) { tbl.Items[0].Weight = -1 }, "weight"},
		{"orphan pity", func(tbl *raffle.TableFile) {
			tbl.Pity = map[string]raffle.TablePity{"ghost": {Threshold: 1, Increment: 1}}
		}, "no such item"},
		{"pity threshold", func(tbl *raffle.TableFile) {
			tbl.Pity = map[string]raffle.TablePity{"coin": {Threshold: 0, Increment: 1}}
		}, "threshold"},
		{"bad normalization", func(tbl *raffle.TableFile) { tbl.Normalization = "power" }, "normalization"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := raffle.LoadTableFromBytes([]byte(sampleTable))
			require.NoError(t, err)
			tc.mutate(table)
			err = table.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestTableFile_Build(t *testing.T) {
	table, err := raffle.LoadTableFromBytes([]byte(sampleTable))
	require.NoError(t, err)

	e, err := table.Build(raffle.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, e.Len())
	seed, seeded := e.Seed()
	require.True(t, seeded, "table seed overrides the options")
	assert.Equal(t, int64(77), seed)
	assert.True(t, e.HasExclusion("coin"))
	assert.True(t, e.HasInGroup("currency", "coin"))

	state, ok := e.PityOf("gem")
	require.True(t, ok)
	assert.Equal(t, 4, state.Threshold)
	assert.Equal(t, 0.5, state.Increment)
	assert.Equal(t, 3.0, state.Cap)

	// Coin is excluded, so every draw lands on the gem.
	res, err := e.DrawOne(raffle.DrawOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "gem", res.ID)
}

func TestTableFile_BuildDefaultsFromOptions(t *testing.T) {
	table, err := raffle.LoadTableFromBytes([]byte(`
name: plain
items:
  - id: a
    weight: 1
`))
	require.NoError(t, err)

	seed := int64(5)
	e, err := table.Build(raffle.Options{Seed: &seed, Normalization: raffle.NormalizationSoftmax})
	require.NoError(t, err)
	got, seeded := e.Seed()
	require.True(t, seeded)
	assert.Equal(t, int64(5), got, "options seed survives when the table has none")
	assert.Equal(t, raffle.NormalizationSoftmax, e.Normalization())
}

func TestLoadTableFromFile_NameDefaultsToBase(t *testing.T) {
	dir := t.TempDir()
	path := writeTable(t, dir, "starter-loot.yaml", `
items:
  - id: a
    weight: 1
`)
	table, err := raffle.LoadTableFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "starter-loot", table.Name)
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "one.yaml", "items:\n  - id: a\n    weight: 1\n")
	writeTable(t, dir, "two.yml", "name: second\nitems:\n  - id: b\n    weight: 1\n")
	writeTable(t, dir, "notes.txt", "not a table")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	tables, err := raffle.LoadTables(dir)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Contains(t, tables, "one")
	assert.Contains(t, tables, "second")
}

func TestLoadTables_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "a.yaml", "name: dup\nitems:\n  - id: a\n    weight: 1\n")
	writeTable(t, dir, "b.yaml", "name: dup\nitems:\n  - id: b\n    weight: 1\n")

	_, err := raffle.LoadTables(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table name")
}

func TestLoadTables_InvalidTableFails(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "bad.yaml", "items: []\n")

	_, err := raffle.LoadTables(dir)
	require.Error(t, err)
}

func TestLoadTables_MissingDir(t *testing.T) {
	_, err := raffle.LoadTables(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
