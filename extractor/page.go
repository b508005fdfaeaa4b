package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/tagscope/models"
)

// PageStats counts scripts, links and images in html and reads the title.
// Counts stay zero if the document cannot be parsed.
func PageStats(html string) models.PageInfo {
	var info models.PageInfo
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return info
	}
	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	info.ScriptCount = doc.Find("script").Length()
	info.LinkCount = doc.Find("a[href]").Length()
	info.ImageCount = doc.Find("img").Length()
	return info
}
