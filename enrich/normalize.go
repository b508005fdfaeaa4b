package enrich

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/signatures"
)

// Entity types reported by the analysis service.
const (
	entityGTMContainer = "GTM Container"
	entityGA4Stream    = "GA4 Stream"
)

type containerEntry struct {
	EntityType                string                     `json:"entityType"`
	ConsentMode               json.RawMessage            `json:"consentMode"`
	CMP                       *string                    `json:"cmp"`
	ConsentDefault            map[string]json.RawMessage `json:"consentDefault"`
	Tags                      []rawTag                   `json:"tags"`
	Variables                 []json.RawMessage          `json:"variables"`
	Triggers                  []json.RawMessage          `json:"triggers"`
	ServerContainerURL        string                     `json:"serverContainerUrl"`
	MeasurementProtocolSecret string                     `json:"measurementProtocolSecret"`
}

type rawTag struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Paused     json.RawMessage `json:"paused"`
	Parameters json.RawMessage `json:"parameters"`
}

// isPaused treats only an explicit true (bool or string) as paused.
func (t rawTag) isPaused() bool {
	return truthy(t.Paused)
}

func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "true", `"true"`, `"TRUE"`, `"True"`, "1":
		return true
	default:
		return false
	}
}

// param is one flattened key/value pair from a tag's parameters.
type param struct {
	Key   string
	Value string
}

// flattenParameters accepts either a {key: value} map or a list of
// {key, value} objects, nested to any depth.
func flattenParameters(raw json.RawMessage) []param {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var out []param
	walkParam("", v, &out)
	return out
}

func walkParam(key string, v any, out *[]param) {
	switch t := v.(type) {
	case map[string]any:
		if k, ok := t["key"].(string); ok {
			if val, ok := t["value"]; ok {
				walkParam(k, val, out)
				return
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkParam(k, t[k], out)
		}
	case []any:
		for _, e := range t {
			walkParam(key, e, out)
		}
	case string:
		*out = append(*out, param{Key: key, Value: strings.TrimSpace(t)})
	case float64:
		*out = append(*out, param{Key: key, Value: strconv.FormatFloat(t, 'f', -1, 64)})
	}
}

// accumulator merges container entries into one TagstackInfo.
type accumulator struct {
	info   *models.TagstackInfo
	usable int
}

func newAccumulator() *accumulator {
	return &accumulator{info: &models.TagstackInfo{
		Containers:  make(map[string]models.ContainerStats),
		DetectedIDs: make(models.DetectedIDs),
	}}
}

// addPayload applies every entry of one response, in sorted id order so the
// merge is deterministic.
func (a *accumulator) addPayload(entries map[string]json.RawMessage) {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var e containerEntry
		if err := json.Unmarshal(entries[id], &e); err != nil {
			slog.Debug("enrich: skipping malformed container entry", "id", id, "error", err)
			continue
		}
		a.addEntry(id, e)
	}
}

func (a *accumulator) addEntry(id string, e containerEntry) {
	switch e.EntityType {
	case entityGTMContainer:
		a.usable++
		a.addContainer(id, e)
	case entityGA4Stream:
		a.usable++
		a.info.DetectedIDs.Add(models.ChannelGA4, id)
		if e.MeasurementProtocolSecret != "" || e.ServerContainerURL != "" {
			a.info.ServerSideTracking = true
		}
	default:
		slog.Debug("enrich: unknown entity type", "id", id, "entityType", e.EntityType)
	}
}

func (a *accumulator) addContainer(id string, e containerEntry) {
	info := a.info
	if truthy(e.ConsentMode) {
		info.ConsentModeV2 = true
	}
	if e.CMP != nil && *e.CMP != "" {
		info.CMP = *e.CMP
	}
	if len(e.ConsentDefault) > 0 {
		if info.ConsentDefaults == nil {
			info.ConsentDefaults = make(map[string]string, len(e.ConsentDefault))
		}
		for k, v := range e.ConsentDefault {
			info.ConsentDefaults[k] = rawString(v)
		}
	}
	if e.ServerContainerURL != "" {
		info.ServerSideTracking = true
	}

	stats := models.ContainerStats{
		Tags:      len(e.Tags),
		Variables: len(e.Variables),
		Triggers:  len(e.Triggers),
	}
	for _, tag := range e.Tags {
		if tag.isPaused() {
			stats.PausedTags++
		} else {
			stats.ActiveTags++
		}
		if isServerTag(tag) {
			info.ServerSideTracking = true
		}
		a.collectTagIDs(tag)
	}
	info.Containers[id] = stats
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(bytes.TrimSpace(raw)), `"`)
}

func isServerTag(tag rawTag) bool {
	kind := strings.ToLower(tag.Type + " " + tag.Name)
	if strings.Contains(kind, "sgtm") || strings.Contains(kind, "server") {
		return true
	}
	for _, p := range flattenParameters(tag.Parameters) {
		k := strings.ToLower(p.Key)
		if (k == "server_container_url" || k == "transport_url") && p.Value != "" {
			return true
		}
	}
	return false
}

// collectTagIDs scans a tag's parameters for vendor ids. Vendor-specific
// numeric ids are only trusted when the tag name or type names the vendor.
func (a *accumulator) collectTagIDs(tag rawTag) {
	ids := a.info.DetectedIDs
	kind := strings.ToLower(tag.Type + " " + tag.Name)

	for _, p := range flattenParameters(tag.Parameters) {
		v := strings.ToUpper(p.Value)
		key := strings.ToLower(p.Key)

		if signatures.MeasurementID.MatchString(v) {
			ids.Add(models.ChannelGA4, v)
			continue
		}
		if aw := signatures.ConversionID.FindString(v); aw != "" {
			ids.Add(models.ChannelGoogleAds, aw)
			continue
		}
		if isGoogleAdsTag(kind) && strings.Contains(key, "conversionid") && signatures.NumericPixelID.MatchString(v) {
			ids.Add(models.ChannelGoogleAds, "AW-"+v)
			continue
		}

		switch {
		case containsAny(kind, "facebook", "fbq", "meta"):
			if signatures.NumericPixelID.MatchString(v) && len(v) >= 10 {
				ids.Add(models.ChannelFacebook, v)
			}
		case containsAny(kind, "tiktok"):
			if signatures.TikTokPixelID.MatchString(v) {
				ids.Add(models.ChannelTikTok, v)
			}
		case containsAny(kind, "linkedin"):
			if signatures.NumericPixelID.MatchString(v) {
				ids.Add(models.ChannelLinkedIn, v)
			}
		}
	}
}

func isGoogleAdsTag(kind string) bool {
	return containsAny(kind, "awct", "adwords", "google ads")
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// result returns the merged info, or nil when nothing usable was seen.
func (a *accumulator) result() *models.TagstackInfo {
	if a.usable == 0 {
		return nil
	}
	return a.info
}
