package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"pct":   formatPct,
		"float": formatFloat,
	}

	content, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback keeps report generation working if the embedded
		// template is missing from the build.
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(content)))
}

// reportData is the template payload for the Word and PDF reports.
type reportData struct {
	*domain.Metrics
	GeneratedBy      string
	TopTrades        []domain.CountRow
	ReadyLabel       string
	MinorLabel       string
	MajorLabel       string
	ExtensiveLabel   string
	IncludeUnitTable bool
}

// RenderReportHTML renders the inspection summary report as a standalone
// HTML document, the common input for the DOCX and PDF backends.
func RenderReportHTML(m *domain.Metrics, generatedBy string) (string, error) {
	trades := m.SummaryTrade
	if len(trades) > config.TopProblemTrades {
		trades = trades[:config.TopProblemTrades]
	}
	data := reportData{
		Metrics:          m,
		GeneratedBy:      generatedBy,
		TopTrades:        trades,
		ReadyLabel:       fmt.Sprintf("Ready (0-%d defects)", config.ReadyMaxDefects),
		MinorLabel:       fmt.Sprintf("Minor Work (%d-%d)", config.ReadyMaxDefects+1, config.MinorWorkMaxDefects),
		MajorLabel:       fmt.Sprintf("Major Work (%d-%d)", config.MinorWorkMaxDefects+1, config.MajorWorkMaxDefects),
		ExtensiveLabel:   fmt.Sprintf("Extensive Work (>%d)", config.MajorWorkMaxDefects),
		IncludeUnitTable: len(m.SummaryUnit) > 0,
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}

// fallbackTemplate is used when the embedded template cannot be read.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.BuildingName}} Inspection Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
    th { background: #eee; }
  </style>
</head>
<body>
  <h1>{{.BuildingName}} Pre-Settlement Inspection Report</h1>
  <p>{{.Address}} | Inspected {{.InspectionDate}} | Generated by {{.GeneratedBy}}</p>
  <table>
    <tr><th>Total Units</th><td>{{.TotalUnits}}</td></tr>
    <tr><th>Total Defects</th><td>{{.TotalDefects}}</td></tr>
    <tr><th>Defect Rate</th><td>{{pct .DefectRate}}</td></tr>
  </table>
  <h2>Settlement Readiness</h2>
  <table>
    <tr><th>{{.ReadyLabel}}</th><td>{{.ReadyUnits}}</td><td>{{pct .ReadyPct}}</td></tr>
    <tr><th>{{.MinorLabel}}</th><td>{{.MinorWorkUnits}}</td><td>{{pct .MinorPct}}</td></tr>
    <tr><th>{{.MajorLabel}}</th><td>{{.MajorWorkUnits}}</td><td>{{pct .MajorPct}}</td></tr>
    <tr><th>{{.ExtensiveLabel}}</th><td>{{.ExtensiveUnits}}</td><td>{{pct .ExtensivePct}}</td></tr>
  </table>
</body>
</html>`
