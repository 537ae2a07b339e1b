// File: internal/report/aggregator.go
package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/login"
	"github.com/xkilldash9x/keepalive-cli/internal/notify"
)

// ErrEmptyBatch is returned when there is nothing to aggregate. An empty
// batch is a configuration problem, not a 0% run.
var ErrEmptyBatch = errors.New("no account results to aggregate")

// beijing is the fixed UTC+8 zone the report header and per-account times use.
var beijing = time.FixedZone("UTC+8", 8*60*60)

const timeLayout = "2006-01-02 15:04:05"

// AccountResult is the outcome of one account within a run.
type AccountResult struct {
	Account   string
	Panel     string
	Service   string
	Outcome   login.Outcome
	Timestamp time.Time
}

// NewAccountResult labels out with the account's display fields.
func NewAccountResult(cred accounts.Credential, out login.Outcome, at time.Time) AccountResult {
	return AccountResult{
		Account:   cred.Name,
		Panel:     cred.Label(),
		Service:   cred.Service(),
		Outcome:   out,
		Timestamp: at,
	}
}

// Succeeded reports whether the account counts towards the success rate.
func (r AccountResult) Succeeded() bool { return r.Outcome.Succeeded() }

// RunSummary is the aggregated view of a run.
type RunSummary struct {
	RunID              string
	SuccessCount       int
	TotalCount         int
	SuccessRatePercent float64
	// Lines holds one short line per account, in run order.
	Lines       []string
	Results     []AccountResult
	GeneratedAt time.Time
	// AbortReason is set when the run stopped before every account was tried.
	AbortReason string
}

// AllSucceeded reports whether every account succeeded.
func (s RunSummary) AllSucceeded() bool { return s.TotalCount > 0 && s.SuccessCount == s.TotalCount }

// Aggregate counts successes and renders the per-account lines.
func Aggregate(results []AccountResult) (RunSummary, error) {
	if len(results) == 0 {
		return RunSummary{}, ErrEmptyBatch
	}

	s := RunSummary{
		TotalCount:  len(results),
		Results:     results,
		Lines:       make([]string, 0, len(results)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, r := range results {
		if r.Succeeded() {
			s.SuccessCount++
		}
		s.Lines = append(s.Lines, summaryLine(r))
	}
	s.SuccessRatePercent = math.Round(float64(s.SuccessCount)*1000/float64(s.TotalCount)) / 10
	return s, nil
}

func summaryLine(r AccountResult) string {
	line := fmt.Sprintf("%s %s [%s] %s", statusIcon(r), r.Account, r.Service, r.Outcome.Classification)
	if r.Outcome.Kind != login.KindNone {
		line += " (" + r.Outcome.Kind.String() + ")"
	}
	if r.Outcome.Reason != "" {
		line += ": " + r.Outcome.Reason
	}
	return line
}

func statusIcon(r AccountResult) string {
	if r.Succeeded() {
		return "✅"
	}
	return "❌"
}

func statusText(r AccountResult) string {
	switch {
	case r.Outcome.Classification == login.Success:
		return "Login succeeded"
	case r.Succeeded():
		return "Login probably succeeded"
	default:
		return "Login failed"
	}
}

const (
	rule     = "━━━━━━━━━━━━━━━━━━━━"
	// thinRule closes each account block; chat delivery splits long
	// reports after it.
	thinRule = notify.BlockSeparator
)

// Format renders the summary as the chat message sent after a run. The text
// uses Telegram's legacy Markdown.
func Format(s RunSummary) string {
	var b strings.Builder
	generated := s.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	b.WriteString("📨 Serv00 & CT8 keepalive report\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "🕘 Beijing time: %s\n", generated.In(beijing).Format(timeLayout))
	fmt.Fprintf(&b, "🌐 UTC time: %s\n", generated.UTC().Format(timeLayout))
	b.WriteString(rule + "\n\n")
	b.WriteString("📊 Login status\n\n")

	for _, r := range s.Results {
		fmt.Fprintf(&b, "🔹 *Service*: `%s`\n", inlineCode(r.Service))
		fmt.Fprintf(&b, "👤 *Account*: `%s`\n", inlineCode(r.Account))
		fmt.Fprintf(&b, "🕒 *Time*: %s\n", r.Timestamp.In(beijing).Format(timeLayout))
		fmt.Fprintf(&b, "%s *Status*: _%s_\n", statusIcon(r), statusText(r))
		if !r.Succeeded() && r.Outcome.Reason != "" {
			fmt.Fprintf(&b, "📝 *Reason*: `%s`\n", inlineCode(r.Outcome.Reason))
		}
		b.WriteString(thinRule + "\n")
	}

	if s.AbortReason != "" {
		fmt.Fprintf(&b, "\n⚠️ Run aborted early: `%s`\n", inlineCode(s.AbortReason))
	}
	fmt.Fprintf(&b, "\n🏁 %d/%d accounts logged in (%.1f%%)", s.SuccessCount, s.TotalCount, s.SuccessRatePercent)
	return b.String()
}

// FormatEmpty renders the notice sent when no account produced a result.
func FormatEmpty(generated time.Time, cause string) string {
	var b strings.Builder
	b.WriteString("📨 Serv00 & CT8 keepalive report\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "🕘 Beijing time: %s\n", generated.In(beijing).Format(timeLayout))
	fmt.Fprintf(&b, "🌐 UTC time: %s\n", generated.UTC().Format(timeLayout))
	b.WriteString(rule + "\n\n")
	b.WriteString("❌ No account was processed.")
	if cause != "" {
		fmt.Fprintf(&b, "\n📝 *Reason*: `%s`", inlineCode(cause))
	}
	return b.String()
}

// inlineCode keeps s from closing the surrounding code span.
func inlineCode(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
