package consent

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/tagscope/signatures"
)

var scriptSrcSel = cascadia.MustCompile("script[src]")

// DetectStatic identifies a CMP from serialized HTML alone. It is used when
// the live DOM cannot be queried and by callers that only hold markup.
func DetectStatic(document string) (signatures.CMP, bool, error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return signatures.CMP{}, false, err
	}

	var scripts []string
	for _, n := range cascadia.QueryAll(root, scriptSrcSel) {
		for _, a := range n.Attr {
			if a.Key == "src" {
				scripts = append(scripts, a.Val)
			}
		}
	}

	for _, cc := range signatures.CompiledCMPs() {
		for _, m := range cc.Matchers {
			if cascadia.Query(root, m) != nil {
				return cc.CMP, true, nil
			}
		}
		if matchesScript(cc.CMP, scripts) {
			return cc.CMP, true, nil
		}
	}
	return signatures.CMP{}, false, nil
}
