package signatures

import (
	"testing"

	"github.com/andybalholm/cascadia"
)

func TestSelectorsCompile(t *testing.T) {
	t.Parallel()

	var all []string
	for _, c := range CMPs {
		all = append(all, c.Selectors...)
		all = append(all, c.AcceptSelectors...)
	}
	all = append(all, GenericAcceptSelectors...)

	for _, s := range all {
		if _, err := cascadia.Parse(s); err != nil {
			t.Errorf("selector %q does not compile: %v", s, err)
		}
	}
}

func TestCompiledCMPsKeepPriority(t *testing.T) {
	t.Parallel()

	compiled := CompiledCMPs()
	if len(compiled) != len(CMPs) {
		t.Fatalf("compiled %d CMPs, want %d", len(compiled), len(CMPs))
	}
	for i, c := range compiled {
		if c.Name != CMPs[i].Name {
			t.Errorf("position %d: got %q, want %q", i, c.Name, CMPs[i].Name)
		}
		if len(c.Matchers) != len(c.Selectors) {
			t.Errorf("%s: %d matchers for %d selectors", c.Name, len(c.Matchers), len(c.Selectors))
		}
	}
	if CMPs[0].Name != "OneTrust" {
		t.Errorf("first CMP = %q, want OneTrust", CMPs[0].Name)
	}
}

func TestNormalizeContainerID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"canonical", "GTM-ABC123", "GTM-ABC123", true},
		{"bare id gets prefix", "XYZ789", "GTM-XYZ789", true},
		{"lowercase", "gtm-abc123", "GTM-ABC123", true},
		{"whitespace", "  GTM-ABCDEFG ", "GTM-ABCDEFG", true},
		{"too short", "GTM-AB12", "", false},
		{"bare too short", "AB12", "", false},
		{"invalid chars", "GTM-ABC_123", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeContainerID(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeContainerID(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsCDNHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want bool
	}{
		{"stape.io", true},
		{"load.eu.stape.io", true},
		{"cdn.stapecdn.com", true},
		{"STAPE.NET", true},
		{"notstape.io", false},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCDNHost(tt.host); got != tt.want {
			t.Errorf("IsCDNHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestGTMScriptURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{`https://www.googletagmanager.com/gtm.js?id=GTM-ABC123`, "GTM-ABC123"},
		{`https://www.googletagmanager.com/gtm.js?l=dataLayer&amp;id=GTM-K9X2M4P`, "GTM-K9X2M4P"},
		{`https://www.googletagmanager.com/ns.html?id=GTM-ZZZ999`, ""},
	}
	for _, tt := range tests {
		m := GTMScriptURL.FindStringSubmatch(tt.input)
		got := ""
		if m != nil {
			got = m[1]
		}
		if got != tt.want {
			t.Errorf("GTMScriptURL on %q = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGoogleAdsPrefix(t *testing.T) {
	t.Parallel()

	var pattern PixelPattern
	for _, p := range GoogleAdsPatterns {
		if p.Method == "viewthrough-conversion" {
			pattern = p
		}
	}
	m := pattern.Regex.FindStringSubmatch(`https://googleads.g.doubleclick.net/pagead/viewthroughconversion/987654321/?guid=ON`)
	if got := pattern.ID(m); got != "AW-987654321" {
		t.Errorf("ID = %q, want AW-987654321", got)
	}
}
