package report

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/use-agent/tagscope/models"
)

// MarkdownWriter outputs scan results as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(result *models.ScanResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeScores(md, result)
	w.writeConsent(md, result)
	w.writeContainers(md, result)
	w.writePixels(md, result)
	w.writeEnrichment(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *models.ScanResult) {
	md.H1("Tagscope Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + r.URL + "`"},
			{"Title", orDash(r.Page.Title)},
			{"Scan Date", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", r.Duration.Round(time.Millisecond).String()},
			{"Status", statusText(r)},
			{"Scripts / Links / Images", strconv.Itoa(r.Page.ScriptCount) + " / " +
				strconv.Itoa(r.Page.LinkCount) + " / " + strconv.Itoa(r.Page.ImageCount)},
		},
	})
	md.PlainText("")

	if !r.Success {
		md.Cautionf("Scan failed: %s", r.Error)
		md.PlainText("")
	}
}

func statusText(r *models.ScanResult) string {
	if !r.Success {
		return "❌ Failed"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeScores(md *markdown.Markdown, r *models.ScanResult) {
	md.H2("Scores")
	md.PlainText("")
	if r.Scores == nil {
		md.PlainText("No scores were computed.")
		md.PlainText("")
		return
	}
	s := r.Scores
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Score"},
		Rows: [][]string{
			{"Performance", strconv.Itoa(s.Performance)},
			{"Privacy", strconv.Itoa(s.Privacy)},
			{"Tracking", strconv.Itoa(s.Tracking)},
			{"Compliance", strconv.Itoa(s.Compliance)},
			{"**Overall**", "**" + strconv.Itoa(s.Overall) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case s.Overall >= 80:
		md.Tip("Strong measurement and consent setup.")
	case s.Overall >= 50:
		md.Note("Measurement works but has gaps; see the sections below.")
	default:
		md.Warningf("Overall score %d: tracking or consent setup needs attention.", s.Overall)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeConsent(md *markdown.Markdown, r *models.ScanResult) {
	md.H2("Cookie Consent")
	md.PlainText("")
	c := r.Cookies
	if c == nil {
		md.PlainText("Consent resolution did not complete.")
		md.PlainText("")
		return
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"CMP", orDash(c.Provider)},
			{"Confidence", orDash(string(c.Confidence))},
			{"Accepted", yesNo(c.Accepted)},
			{"Method", orDash(c.Method)},
			{"Clicked Element", orDash(truncateString(c.Element, 40))},
			{"Cookies", strconv.Itoa(c.CookieCount)},
			{"Cookie Domains", strconv.Itoa(c.CookieDomains)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeContainers(md *markdown.Markdown, r *models.ScanResult) {
	md.H2("Tag Containers")
	md.PlainText("")
	g := r.Gtm
	if g == nil || !g.Found {
		md.PlainText("No tag manager containers detected.")
		md.PlainText("")
		return
	}
	items := make([]string, len(g.Containers))
	for i, id := range g.Containers {
		items[i] = "`" + id + "`"
		if id == g.Primary {
			items[i] += " (primary)"
		}
	}
	md.BulletList(items...)
	md.PlainText("")
	md.PlainTextf("Consent Mode commands on page: %s", yesNo(g.ConsentMode))
	md.PlainText("")
	if len(g.ThirdPartyScripts) > 0 {
		md.PlainText("Loader scripts inspected:")
		md.PlainText("")
		md.BulletList(g.ThirdPartyScripts...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePixels(md *markdown.Markdown, r *models.ScanResult) {
	md.H2("Pixels and Platforms")
	md.PlainText("")
	p := r.Pixels
	if p == nil {
		md.PlainText("Pixel extraction did not complete.")
		md.PlainText("")
		return
	}

	channels := []struct {
		name string
		ch   models.Channel
	}{
		{"Meta", p.Meta},
		{"TikTok", p.TikTok},
		{"LinkedIn", p.LinkedIn},
		{"Google Ads", p.GoogleAds},
		{"GA4", p.GA4},
	}
	rows := make([][]string, 0, len(channels)+3)
	for _, c := range channels {
		rows = append(rows, []string{c.name, yesNo(c.ch.Found), orDash(strings.Join(c.ch.IDs, ", ")), orDash(strings.Join(c.ch.Methods, ", "))})
	}
	platforms := []struct {
		name string
		pl   models.Platform
	}{
		{"Amplitude", p.Amplitude},
		{"Mixpanel", p.Mixpanel},
		{"Triple Whale", p.TripleWhale},
	}
	for _, pl := range platforms {
		rows = append(rows, []string{pl.name, yesNo(pl.pl.Found), "-", orDash(strings.Join(pl.pl.Sources, ", "))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Found", "IDs", "Signals"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeEnrichment(md *markdown.Markdown, r *models.ScanResult) {
	md.H2("Container Analysis")
	md.PlainText("")
	t := r.Tagstack
	if t == nil {
		md.PlainText("No container analysis available.")
		md.PlainText("")
		return
	}

	ids := make([]string, 0, len(t.Containers))
	for id := range t.Containers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		s := t.Containers[id]
		rows = append(rows, []string{"`" + id + "`", strconv.Itoa(s.Tags), strconv.Itoa(s.ActiveTags),
			strconv.Itoa(s.PausedTags), strconv.Itoa(s.Variables), strconv.Itoa(s.Triggers)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Container", "Tags", "Active", "Paused", "Variables", "Triggers"},
		Rows:   rows,
	})
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Consent Mode v2", yesNo(t.ConsentModeV2)},
			{"CMP (from container)", orDash(t.CMP)},
			{"Server-side tracking", yesNo(t.ServerSideTracking)},
		},
	})
	md.PlainText("")

	if total := t.TotalStats(); total.Tags > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Tag Status"),
			piechart.WithShowData(true),
		)
		if total.ActiveTags > 0 {
			chart.LabelAndIntValue("Active", uint64(total.ActiveTags))
		}
		if total.PausedTags > 0 {
			chart.LabelAndIntValue("Paused", uint64(total.PausedTags))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by tagscope*")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
