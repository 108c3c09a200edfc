package cmd

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OranBe/project-data-mining/internal/driver"
)

func TestExportCSVWritesFileOnSuccess(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results", "subgroup_0001.csv")

	rows, err := exportCSV(out, func(w *csv.Writer) (int64, error) {
		require.NoError(t, w.Write([]string{"id", "publication_year"}))
		require.NoError(t, w.Write([]string{"W1", "2019"}))
		require.NoError(t, w.Write([]string{"W2", "2021"}))
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,publication_year\nW1,2019\nW2,2021\n", string(body))

	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExportCSVFailureLeavesNoFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "subgroup_0042.csv")

	_, err := exportCSV(out, func(w *csv.Writer) (int64, error) {
		// Rows already written before the query dies mid-stream.
		require.NoError(t, w.Write([]string{"id", "publication_year"}))
		require.NoError(t, w.Write([]string{"W1", "2019"}))
		return 0, errors.New("connection reset")
	})
	require.ErrorContains(t, err, "connection reset")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestFailedExportIsNotSkippedOnResume(t *testing.T) {
	dir := t.TempDir()

	_, err := exportCSV(driver.OutputPath(dir, 7), func(w *csv.Writer) (int64, error) {
		return 0, errors.New("query aborted")
	})
	require.Error(t, err)

	_, err = exportCSV(driver.OutputPath(dir, 8), func(w *csv.Writer) (int64, error) {
		require.NoError(t, w.Write([]string{"id"}))
		return 0, nil
	})
	require.NoError(t, err)

	skip := skipPredicate(dir, 0, true)
	require.NotNil(t, skip)
	assert.False(t, skip(7), "failed partition must be resubmitted")
	assert.True(t, skip(8), "completed partition is skipped")
}
