package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// dashboardRow is one table row of the HTML dashboard
type dashboardRow struct {
	Consumer   string
	Item       string
	Status     string
	Color      string
	Remaining  string
	Depletion  string
	Days       string
	Confidence string
}

type dashboardData struct {
	GeneratedAt string
	Rows        []dashboardRow
	Reorder     int
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Restock estimates</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 12px; border-bottom: 1px solid #ddd; text-align: left; }
.status { color: #fff; border-radius: 4px; padding: 2px 8px; }
</style>
</head>
<body>
<h1>Inventory estimates</h1>
<p>Generated {{.GeneratedAt}} &middot; {{.Reorder}} pair(s) need reordering</p>
<table>
<tr><th>Consumer</th><th>Item</th><th>Status</th><th>Remaining</th><th>Depletion</th><th>Days</th><th>Confidence</th></tr>
{{range .Rows}}<tr><td>{{.Consumer}}</td><td>{{.Item}}</td><td><span class="status" style="background: {{.Color}}">{{.Status}}</span></td><td>{{.Remaining}}</td><td>{{.Depletion}}</td><td>{{.Days}}</td><td>{{.Confidence}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// WriteHTML renders a static dashboard page
func WriteHTML(w io.Writer, report Report) error {
	data := dashboardData{GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339)}
	for _, e := range report.Estimates {
		if e.Status.NeedsReorder() {
			data.Reorder++
		}
		data.Rows = append(data.Rows, dashboardRow{
			Consumer:   string(e.Key.Consumer),
			Item:       string(e.Key.Item),
			Status:     e.Status.String(),
			Color:      statusColor(e.Status),
			Remaining:  formatFraction(e),
			Depletion:  formatDepletion(e),
			Days:       formatDays(e),
			Confidence: fmt.Sprintf("%.2f", e.Confidence),
		})
	}

	if err := dashboardTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// statusColor returns the badge color for a status
func statusColor(status entities.StockStatus) string {
	switch status {
	case entities.StatusHigh:
		return "#4CAF50" // Green
	case entities.StatusMedium:
		return "#2196F3" // Blue
	case entities.StatusLow:
		return "#FF9800" // Orange
	case entities.StatusCritical:
		return "#F44336" // Red
	default:
		return "#9E9E9E" // Gray for unknown
	}
}
