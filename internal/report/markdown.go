// File: internal/report/markdown.go
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// WriteMarkdown renders s as a Markdown document.
func WriteMarkdown(w io.Writer, s RunSummary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Keepalive Run Report")
	md.PlainText("")

	rows := [][]string{}
	if s.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + s.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Generated (UTC)", s.GeneratedAt.UTC().Format(timeLayout)},
		[]string{"Generated (UTC+8)", s.GeneratedAt.In(beijing).Format(timeLayout)},
		[]string{"Accounts", strconv.Itoa(s.TotalCount)},
		[]string{"Logged in", strconv.Itoa(s.SuccessCount)},
		[]string{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRatePercent)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.AbortReason != "":
		md.Cautionf("Run aborted early: %s", s.AbortReason)
	case s.AllSucceeded():
		md.Tip("Every account logged in.")
	case s.SuccessCount == 0:
		md.Cautionf("No account logged in (%d tried).", s.TotalCount)
	default:
		md.Warningf("%d of %d accounts failed to log in.", s.TotalCount-s.SuccessCount, s.TotalCount)
	}
	md.PlainText("")

	md.H2("Accounts")
	md.PlainText("")
	accountRows := make([][]string, len(s.Results))
	for i, r := range s.Results {
		reason := r.Outcome.Reason
		if reason == "" {
			reason = "-"
		}
		accountRows[i] = []string{
			cell(r.Account),
			r.Service,
			cell(r.Panel),
			statusIcon(r) + " " + r.Outcome.Classification.String(),
			strconv.Itoa(r.Outcome.TriedURLs),
			cell(reason),
			r.Timestamp.UTC().Format(timeLayout),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Account", "Service", "Panel", "Status", "Tried URLs", "Reason", "Time (UTC)"},
		Rows:   accountRows,
	})

	return md.Build()
}

// cell escapes characters that would break a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
