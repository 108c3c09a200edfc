package mergecsv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestMergeKeepsSingleHeader(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "subgroup_0001.csv", "id,publication_year\nW1,2001\nW2,2002\n")
	writeCSV(t, dir, "subgroup_0002.csv", "id,publication_year\nW3,2003\n")
	writeCSV(t, dir, "subgroup_0003.csv", "id,publication_year\nW4,2004\nW5,2005\n")

	out := filepath.Join(t.TempDir(), "merged.csv")
	rows, err := Merge(dir, out)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"id,publication_year\nW1,2001\nW2,2002\nW3,2003\nW4,2004\nW5,2005\n",
		string(body))
}

func TestMergeSortsInputsByName(t *testing.T) {
	dir := t.TempDir()
	// Written out of order; zero padding makes lexical sort match partition order.
	writeCSV(t, dir, "subgroup_0010.csv", "id\nj\n")
	writeCSV(t, dir, "subgroup_0002.csv", "id\nb\n")
	writeCSV(t, dir, "subgroup_0001.csv", "id\na\n")

	out := filepath.Join(t.TempDir(), "merged.csv")
	_, err := Merge(dir, out)
	require.NoError(t, err)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id\na\nb\nj\n", string(body))
}

func TestMergeIgnoresNonCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "subgroup_0001.csv", "id\na\n")
	writeCSV(t, dir, "notes.txt", "not a csv")

	out := filepath.Join(t.TempDir(), "merged.csv")
	rows, err := Merge(dir, out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestMergeEmptyDirIsError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "merged.csv")
	_, err := Merge(t.TempDir(), out)
	assert.ErrorContains(t, err, "no CSV files")
}

func TestMergeSkipsEmptyChunk(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "subgroup_0001.csv", "")
	writeCSV(t, dir, "subgroup_0002.csv", "id\na\n")

	out := filepath.Join(t.TempDir(), "merged.csv")
	rows, err := Merge(dir, out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id\na\n", string(body))
}
