package validation

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilename(t *testing.T) {
	v := NewUploadValidator(0, nil)

	assert.NoError(t, v.ValidateFilename("inspection.csv"))
	assert.NoError(t, v.ValidateFilename("Tower A export.CSV"))

	assert.Error(t, v.ValidateFilename(""))
	assert.Error(t, v.ValidateFilename("report.xlsx"))
	assert.Error(t, v.ValidateFilename("../../etc/passwd.csv"))
	assert.Error(t, v.ValidateFilename(`evil\path.csv`))
}

func TestValidateStoredCSV(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	v := NewUploadValidator(64, nil)

	assert.NoError(t, v.ValidateStoredCSV(write("ok.csv", []byte("a,b,c\n1,2,3\n"))))
	assert.Error(t, v.ValidateStoredCSV(write("empty.csv", nil)))
	assert.Error(t, v.ValidateStoredCSV(write("binary.csv", []byte{0x50, 0x4b, 0x00, 0x01})))
	assert.Error(t, v.ValidateStoredCSV(write("big.csv", bytes.Repeat([]byte("a"), 128))))
	assert.Error(t, v.ValidateStoredCSV(filepath.Join(dir, "missing.csv")))
}
