// Package report renders check results as text, JSON and CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

const (
	statusAvailable = "AVAILABLE"
	statusTaken     = "TAKEN"

	timestampLayout = "2006-01-02 15:04:05"
)

type palette struct {
	title, available, taken, failed, dim *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		title:     color.New(color.FgCyan, color.Bold),
		available: color.New(color.FgGreen),
		taken:     color.New(color.FgRed),
		failed:    color.New(color.FgYellow),
		dim:       color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.title, p.available, p.taken, p.failed, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// DetailedReport is the plain text report of one check.
func DetailedReport(result *domain.CheckResult) string {
	return Render(result, false)
}

// Render builds the text report, with ANSI colors when colored is set.
// Platforms are listed in request order.
func Render(result *domain.CheckResult, colored bool) string {
	p := newPalette(colored)
	var b strings.Builder

	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", p.title.Sprint("USERNAME CHECK REPORT"))
	line("%s", strings.Repeat("=", 60))
	line("Username: %s", result.Request.Username)
	line("Platforms Checked: %d", len(result.PlatformResults))
	line("Overall Success Rate: %.1f%%", result.Stats.SuccessRate*100)
	line("Execution Time: %.2fs", result.Stats.ExecutionTime)
	if result.State == domain.StateFailed {
		line("%s", p.failed.Sprintf("Check failed: %s", result.Stats.Error))
	}
	line("")

	line("PLATFORM RESULTS:")
	line("%s", strings.Repeat("-", 40))
	for _, r := range result.Ordered() {
		status := p.available.Sprintf("%-15s", statusAvailable)
		if r.Exists.Bool() {
			status = p.taken.Sprintf("%-15s", statusTaken)
		}
		line("%-15s %s Confidence: %.1f%% Method: %s", r.Platform, status, r.Confidence*100, r.Method)
		if r.Error != "" {
			line("    %s", p.failed.Sprintf("Error: %s", r.Error))
		}
	}

	if len(result.Recommendations) > 0 {
		line("")
		line("RECOMMENDATIONS:")
		line("%s", strings.Repeat("-", 40))
		for _, rec := range result.Recommendations {
			line("• %s", rec)
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Export is the JSON export document.
type Export struct {
	CheckID         string                            `json:"check_id"`
	Username        string                            `json:"username"`
	Timestamp       float64                           `json:"timestamp"` // unix seconds
	OverallStats    domain.OverallStats               `json:"overall_stats"`
	PlatformResults map[string]*domain.PlatformResult `json:"platform_results"`
	Recommendations []string                          `json:"recommendations"`
	Metadata        domain.Metadata                   `json:"metadata"`
}

// ExportJSON renders result as indented JSON. The timestamp is the
// completion time of the check.
func ExportJSON(result *domain.CheckResult) ([]byte, error) {
	doc := Export{
		CheckID:         result.Request.ID,
		Username:        result.Request.Username,
		Timestamp:       float64(result.CompletedAt.UnixMilli()) / 1000,
		OverallStats:    result.Stats,
		PlatformResults: result.PlatformResults,
		Recommendations: result.Recommendations,
		Metadata:        result.Metadata,
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []string{}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return out, nil
}

// CSVHeader is the first row of ExportCSV.
var CSVHeader = []string{"Username", "Platform", "Available", "Confidence", "Method", "Timestamp"}

// ExportCSV renders one row per platform result across results.
func ExportCSV(results []*domain.CheckResult) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(CSVHeader); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		ts := res.CompletedAt
		if ts.IsZero() {
			ts = time.Now()
		}
		for _, r := range res.Ordered() {
			row := []string{
				res.Request.Username,
				r.Platform,
				strconv.FormatBool(!r.Exists.Bool()),
				strconv.FormatFloat(r.Confidence, 'f', -1, 64),
				string(r.Method),
				ts.Format(timestampLayout),
			}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return b.String(), nil
}
