package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

// BuildWordReport renders the inspection summary as a DOCX document by
// piping the HTML report through pandoc.
func BuildWordReport(ctx context.Context, m *domain.Metrics, generatedBy string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	html, err := RenderReportHTML(m, generatedBy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, config.PandocTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pandoc",
		"-f", "html",
		"-t", "docx",
		"--standalone",
		"-o", "-",
	)
	cmd.Stdin = strings.NewReader(html)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("pandoc failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}

	return &Result{
		Data:     output,
		Filename: ReportFilename(m.BuildingName, "inspection_report", "docx"),
		MimeType: MimeDOCX,
	}, nil
}
