// Package output renders execution summaries. Rendering is a pure function
// of the finalized summary: no side effects, no influence on scheduling, and
// output rows always follow target order.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sagarmemane135/omnihost/internal/engine"
)

// Mode identifies one of the supported summary encodings.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeJSON        Mode = "json"
	ModeCSV         Mode = "csv"
	ModeQuiet       Mode = "quiet"
	ModePlain       Mode = "plain"
	ModeCompact     Mode = "compact"
)

// Success markers for the terse modes.
const (
	markerPass = "✓"
	markerFail = "✗"
)

// compactPreviewLen bounds the output preview in compact mode.
const compactPreviewLen = 60

// ParseMode validates a mode name. The empty string selects interactive.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeInteractive:
		return ModeInteractive, nil
	case ModeJSON, ModeCSV, ModeQuiet, ModePlain, ModeCompact:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid output mode '%s': must be one of interactive, json, csv, quiet, plain, compact", s)
	}
}

// Render encodes a finalized summary in the requested mode.
func Render(s *engine.Summary, mode Mode) (string, error) {
	switch mode {
	case ModeJSON:
		return renderJSON(s)
	case ModeCSV:
		return renderCSV(s)
	case ModeQuiet:
		return renderQuiet(s), nil
	case ModePlain:
		return renderPlain(s), nil
	case ModeCompact:
		return renderCompact(s), nil
	case ModeInteractive, "":
		return renderInteractive(s), nil
	default:
		return "", fmt.Errorf("unknown output mode: %s", mode)
	}
}

// JSONSummary is the json encoding of a summary. Exported so automation
// consumers can unmarshal renderings losslessly.
type JSONSummary struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []JSONResult `json:"results"`
}

// JSONResult is one per-host row of the json encoding.
type JSONResult struct {
	Host       string `json:"host"`
	Success    bool   `json:"success"`
	ExitCode   int    `json:"exitCode"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"durationMs"`
	Output     string `json:"output,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
}

func renderJSON(s *engine.Summary) (string, error) {
	out := JSONSummary{
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Results:   make([]JSONResult, len(s.Results)),
	}

	for i, r := range s.Results {
		row := JSONResult{
			Host:       r.Host.Name,
			Success:    r.Succeeded,
			ExitCode:   r.Final.ExitCode,
			Attempts:   r.Attempts,
			DurationMs: r.TotalDuration.Milliseconds(),
			Output:     r.Final.Stdout,
			Stderr:     r.Final.Stderr,
		}
		if !r.Succeeded {
			row.Error = r.Final.Message
		}
		out.Results[i] = row
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	return string(data) + "\n", nil
}

func renderCSV(s *engine.Summary) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"host", "success", "exit_code", "attempts", "duration_ms", "command", "output", "error"}); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range s.Results {
		errMsg := ""
		if !r.Succeeded {
			errMsg = r.Final.Message
		}
		row := []string{
			r.Host.Name,
			strconv.FormatBool(r.Succeeded),
			strconv.Itoa(r.Final.ExitCode),
			strconv.Itoa(r.Attempts),
			strconv.FormatInt(r.TotalDuration.Milliseconds(), 10),
			s.Command,
			r.Final.Stdout,
			errMsg,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.String(), nil
}

// renderQuiet emits one line per host and no summary line.
func renderQuiet(s *engine.Summary) string {
	var b strings.Builder
	for _, r := range s.Results {
		marker := markerPass
		if !r.Succeeded {
			marker = markerFail
		}
		fmt.Fprintf(&b, "%s: %s [%d] %s\n", r.Host.Name, marker, r.Final.ExitCode, r.FirstOutputLine())
	}
	return b.String()
}

// renderCompact emits one line per host with a truncated output preview.
func renderCompact(s *engine.Summary) string {
	var b strings.Builder
	for _, r := range s.Results {
		marker := markerPass
		if !r.Succeeded {
			marker = markerFail
		}
		fmt.Fprintf(&b, "%s %s [%d]: %s\n", marker, r.Host.Name, r.Final.ExitCode, truncate(r.FirstOutputLine(), compactPreviewLen))
	}
	return b.String()
}

// renderPlain emits the interactive content without any styling. Safe for
// log files.
func renderPlain(s *engine.Summary) string {
	var b strings.Builder
	for _, r := range s.Results {
		status := "OK"
		if !r.Succeeded {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%-4s %s (exit %d, %s, %dms)\n",
			status, r.Host.Name, r.Final.ExitCode, attemptsLabel(r.Attempts), r.TotalDuration.Milliseconds())
		writeIndented(&b, r.Final.Stdout)
		writeIndented(&b, r.Final.Stderr)
		if !r.Succeeded && r.Final.Message != "" {
			fmt.Fprintf(&b, "  error: %s\n", r.Final.Message)
		}
	}
	fmt.Fprintf(&b, "\n%d succeeded, %d failed (%s)\n", s.Succeeded, s.Failed, s.WallClock.Round(time.Millisecond))
	return b.String()
}

func attemptsLabel(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

func writeIndented(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
