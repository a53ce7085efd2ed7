// Package report assembles the plaintext health-check report and writes
// the timestamped report file artifact.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/pvefleet/pvefleet/internal/bench"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00E5FF")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4672")).
			Bold(true)
)

// Report builds the benchmark report in both styled (terminal) and plain
// (file artifact) renderings.
type Report struct {
	Hostname  string
	Generated time.Time
	Results   *bench.Results
}

// New creates a Report for the local host.
func New(results *bench.Results) *Report {
	hostname, _ := os.Hostname()
	return &Report{
		Hostname:  hostname,
		Generated: time.Now(),
		Results:   results,
	}
}

// Render produces the report text. When color is true the terminal styles
// are applied; the file artifact is always written plain.
func (r *Report) Render(color bool) string {
	var b strings.Builder

	title := fmt.Sprintf("pvefleet health report: %s at %s",
		r.Hostname, r.Generated.Format("2006-01-02 15:04:05"))
	b.WriteString(style(title, headerStyle, color))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")

	writeSection(&b, "Network latency", r.Results.Net, color)
	writeSection(&b, "Disk throughput", r.Results.Disk, color)
	writeSection(&b, "CPU", r.Results.CPU, color)

	all := r.Results.All()
	passed := 0
	for _, c := range all {
		if c.Passed {
			passed++
		}
	}

	verdict := style("ALL CHECKS PASSED", passStyle, color)
	if !r.Results.AllOK() {
		verdict = style("CHECKS FAILED: burn-in will not run", failStyle, color)
	}
	b.WriteString(fmt.Sprintf("%s of %s checks passed. %s\n",
		humanize.Comma(int64(passed)), humanize.Comma(int64(len(all))), verdict))

	return b.String()
}

func writeSection(b *strings.Builder, name string, checks []bench.CheckResult, color bool) {
	if len(checks) == 0 {
		return
	}
	b.WriteString(style(name, headerStyle, color))
	b.WriteString("\n")
	for _, c := range checks {
		verdict := style("PASS", passStyle, color)
		if !c.Passed {
			verdict = style("FAIL", failStyle, color)
		}
		fmt.Fprintf(b, "  [%s] %-28s %s\n", verdict, c.Name, c.Detail)
	}
	b.WriteString("\n")
}

func style(s string, st lipgloss.Style, color bool) string {
	if !color {
		return s
	}
	return st.Render(s)
}

// WriteFile writes the plain rendering to a timestamped file under dir and
// returns the path.
func (r *Report) WriteFile(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	name := fmt.Sprintf("pvefleet-bench-%s.txt", r.Generated.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(r.Render(false)), 0644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}
