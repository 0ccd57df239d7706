// Package validation checks uploaded inspection exports before they
// are stored and queued for processing.
package validation

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how much of the file is inspected for binary content.
const sniffLen = 4096

// UploadValidator vets uploaded CSV exports. It rejects wrong
// extensions, path traversal in filenames, empty files, oversized
// files and binary content masquerading as CSV.
type UploadValidator struct {
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadValidator(maxBytes int64, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadValidator{
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "upload_validator")),
	}
}

// ValidateFilename checks the client-supplied filename before the
// upload is written to disk.
func (v *UploadValidator) ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("upload has no filename")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("filename %q must not contain path separators", name)
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".csv" {
		return fmt.Errorf("only CSV uploads are accepted, got %q", ext)
	}
	return nil
}

// ValidateStoredCSV inspects an upload after it has been written to
// disk. The caller removes the file when validation fails.
func (v *UploadValidator) ValidateStoredCSV(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("upload is empty")
	}
	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		return fmt.Errorf("upload is %d bytes, limit is %d", info.Size(), v.maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return fmt.Errorf("read upload: %w", err)
	}
	if bytes.IndexByte(head[:n], 0) >= 0 {
		v.logger.Warn("rejected binary upload", slog.String("path", path))
		return fmt.Errorf("upload does not look like a text CSV file")
	}
	return nil
}
