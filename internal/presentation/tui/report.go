package tui

import (
	"fmt"
	"strings"

	"github.com/benchrig/benchrig/pkg/domain"
)

// ReportMarkdown renders a stored report as a markdown summary with one
// table row per case.
func ReportMarkdown(rep *domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rep.RunID)
	if rep.TestType != "" || rep.Product != "" {
		fmt.Fprintf(&b, "**%s** on **%s**\n\n", orDash(rep.TestType), orDash(rep.Product))
	}
	fmt.Fprintf(&b, "Started %s, took %s.\n\n",
		rep.Started.Format("2006-01-02 15:04:05"), rep.Finished.Sub(rep.Started).Round(1e6))

	counts := rep.Counts()
	fmt.Fprintf(&b, "| passed | failed | skipped | aborted |\n|---|---|---|---|\n| %d | %d | %d | %d |\n\n",
		counts[domain.StatusPassed], counts[domain.StatusFailed], counts[domain.StatusSkipped], counts[domain.StatusAborted])

	b.WriteString("| case | status | duration | detail |\n|---|---|---|---|\n")
	for _, c := range rep.Cases {
		fmt.Fprintf(&b, "| %s/%s | %s | %s | %s |\n", c.Suite, c.ID, c.Status, c.Duration.Round(1e6), cell(c.Error))
	}
	if rep.Abort != "" {
		fmt.Fprintf(&b, "\nRun aborted by `%s`.\n", rep.Abort)
	}
	if rep.Error != "" {
		fmt.Fprintf(&b, "\n> %s\n", cell(rep.Error))
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
