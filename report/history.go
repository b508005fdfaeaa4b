package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/use-agent/tagscope/models"
)

// WriteHistory renders a list of persisted scan summaries as JSON or as a
// Markdown table.
func WriteHistory(format string, output io.Writer, entries []models.HistoryEntry) error {
	switch format {
	case "json", "":
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal history: %w", err)
		}
		_, err = output.Write(append(data, '\n'))
		return err
	case "markdown", "md":
		return writeHistoryMarkdown(output, entries)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeHistoryMarkdown(output io.Writer, entries []models.HistoryEntry) error {
	md := markdown.NewMarkdown(output)
	md.H2("Scan History")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No scans recorded.")
		return md.Build()
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		overall := "-"
		if e.Scores != nil {
			overall = strconv.Itoa(e.Scores.Overall)
		}
		status := "ok"
		if !e.Success {
			status = orDash(truncateString(e.Error, 60))
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			time.Unix(e.ScannedAt, 0).UTC().Format("2006-01-02 15:04"),
			"`" + e.URL + "`",
			overall,
			status,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Scanned (UTC)", "URL", "Overall", "Status"},
		Rows:   rows,
	})
	return md.Build()
}
