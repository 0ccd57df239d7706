// Package export renders processed inspection metrics into report
// artifacts: styled Excel workbooks, Word documents (via pandoc), PDF
// (via headless Chrome) and CSV extracts.
package export

import "errors"

// Format is a report output format.
type Format string

const (
	FormatExcel Format = "excel"
	FormatWord  Format = "word"
	FormatPDF   Format = "pdf"
	FormatCSV   Format = "csv"
)

// Result contains a generated report ready to stream to the client.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrDOCXDependencyMissing indicates pandoc is not installed.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrPDFDependencyMissing indicates no chromium binary is available.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)

// MIME types for the supported formats.
const (
	MimeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePDF   = "application/pdf"
	MimeCSV   = "text/csv"
)
