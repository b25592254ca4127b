package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

// Report renders the end-of-run summary
func Report(r *orchestrator.RunReport) string {
	var b strings.Builder

	title := "Run " + r.RunID
	if r.DryRun {
		title += " (dry run)"
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	if len(r.Accounts) == 0 {
		b.WriteString(dimStyle.Render("No accounts processed"))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(r.Accounts)+1)
	for _, s := range r.Accounts {
		rows = append(rows, []string{
			s.AccountID,
			accountResult(&s),
			strconv.Itoa(s.Candidates),
			strconv.Itoa(s.Processed),
			strconv.Itoa(s.Dropped),
			strconv.Itoa(s.Recorded),
			strconv.Itoa(s.Errors),
			formatCost(s.EstimatedCost),
			s.Elapsed.Round(time.Millisecond).String(),
		})
	}
	t := r.Totals()
	rows = append(rows, []string{
		"total", "",
		strconv.Itoa(t.Candidates),
		strconv.Itoa(t.Processed),
		strconv.Itoa(t.Dropped),
		strconv.Itoa(t.Recorded),
		strconv.Itoa(t.Errors),
		formatCost(t.EstimatedCost),
		r.Elapsed.Round(time.Millisecond).String(),
	})

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("ACCOUNT", "RESULT", "FOUND", "PROCESSED", "DROPPED", "RECORDED", "ERRORS", "EST. COST", "ELAPSED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeading
			}
			if col == 1 && row < len(r.Accounts) {
				return statusStyle(rows[row][1]).Padding(0, 1)
			}
			return cellStyle
		})
	b.WriteString(tbl.String())
	b.WriteString("\n")

	if failures := r.Failures(); len(failures) > 0 {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d failure(s)", len(failures))))
		b.WriteString("\n")
		for _, f := range failures {
			where := f.AccountID
			if f.MessageID != "" {
				where += " message " + f.MessageID
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", dimStyle.Render("["+f.Kind+"]"), where, f.Message)
		}
	}
	return b.String()
}

func accountResult(s *orchestrator.RunSummary) string {
	switch {
	case s.Err != nil:
		return "aborted"
	case s.Interrupted:
		return "interrupted"
	case s.Errors > 0:
		return "partial"
	}
	return "ok"
}

func formatCost(c float64) string {
	if c == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.4f", c)
}

// History renders ledger entries newest first
func History(accountID string, entries []*core.LedgerEntry) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("History " + accountID))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("No processed messages recorded"))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ProcessedAt.Local().Format("2006-01-02 15:04"),
			e.MessageID,
			string(e.Status),
			scoreCell(e.ImportanceScore),
			scoreCell(e.SpamScore),
			detailCell(e),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("WHEN", "MESSAGE", "STATUS", "IMPORTANCE", "SPAM", "NOTE / ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeading
			}
			if col == 2 {
				return statusStyle(rows[row][2]).Padding(0, 1)
			}
			return cellStyle
		})
	b.WriteString(tbl.String())
	b.WriteString("\n")
	return b.String()
}

func scoreCell(score int) string {
	if score == core.ErrorSentinel {
		return "-"
	}
	return strconv.Itoa(score)
}

func detailCell(e *core.LedgerEntry) string {
	if e.Error != "" {
		return e.Error
	}
	return e.NotePath
}

// Estimate renders the cost confirmation box for one account
func Estimate(est safety.CostEstimate) string {
	lines := []string{
		headerStyle.Render("Cost check " + est.AccountID),
		fmt.Sprintf("Messages:  %d", est.Count),
		fmt.Sprintf("Per email: $%.4f (%s)", est.PerEmail, est.Basis),
		fmt.Sprintf("Total:     %s", warnStyle.Render(fmt.Sprintf("$%.4f", est.Total))),
		dimStyle.Render(fmt.Sprintf("Threshold: $%.4f", est.Threshold)),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
