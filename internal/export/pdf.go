package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

// BuildPDFReport renders the inspection summary as a PDF using headless
// Chrome. The HTML report is loaded via a data URL so no temp files or
// local web server are needed.
func BuildPDFReport(ctx context.Context, m *domain.Metrics, generatedBy string) (*Result, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
		}
	}

	html, err := RenderReportHTML(m, generatedBy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, config.ChromePDFTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// url.QueryEscape encodes spaces as +, which breaks data URLs.
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var pdfData []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	return &Result{
		Data:     pdfData,
		Filename: ReportFilename(m.BuildingName, "inspection_report", "pdf"),
		MimeType: MimePDF,
	}, nil
}

// percentEncodeForDataURL percent-encodes a string for a data URL,
// keeping only RFC 3986 unreserved characters literal.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range []byte(string(r)) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}
