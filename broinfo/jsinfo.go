package broinfo

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// BRMarker replaces literal newlines in the canonical JSInfo encoding so the
// stored value is a single line. Dimension values are compared byte-exact,
// so the marker must never change once data exists.
const BRMarker = "<BR>"

// JSInfo holds the fingerprint fields evaluated in the browser. The struct is
// fixed so the canonical encoding is deterministic: same input, same bytes.
type JSInfo struct {
	ScreenWidth         int      `json:"screen_width" yaml:"screen_width"`
	ScreenHeight        int      `json:"screen_height" yaml:"screen_height"`
	ColorDepth          int      `json:"color_depth" yaml:"color_depth"`
	PixelRatio          float64  `json:"pixel_ratio" yaml:"pixel_ratio"`
	Language            string   `json:"language" yaml:"language"`
	Languages           []string `json:"languages" yaml:"languages"`
	Timezone            string   `json:"timezone" yaml:"timezone"`
	Platform            string   `json:"platform" yaml:"platform"`
	HardwareConcurrency int      `json:"hardware_concurrency" yaml:"hardware_concurrency"`
	DeviceMemory        float64  `json:"device_memory" yaml:"device_memory"`
	MaxTouchPoints      int      `json:"max_touch_points" yaml:"max_touch_points"`
	CookiesEnabled      bool     `json:"cookies_enabled" yaml:"cookies_enabled"`
	DoNotTrack          string   `json:"do_not_track" yaml:"do_not_track"`
	Online              bool     `json:"online" yaml:"online"`
}

// Canonical returns the single-line text form of j that the store dedups on:
// the YAML encoding with every newline replaced by BRMarker.
func (j JSInfo) Canonical() (string, error) {
	b, err := yaml.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("broinfo: encode jsinfo: %w", err)
	}
	return strings.ReplaceAll(strings.TrimSuffix(string(b), "\n"), "\n", BRMarker), nil
}

// ParseCanonical reverses Canonical. Used by debug tooling and tests; the
// write path itself never needs to decode stored values.
func ParseCanonical(s string) (JSInfo, error) {
	var j JSInfo
	raw := strings.ReplaceAll(s, BRMarker, "\n")
	if err := yaml.Unmarshal([]byte(raw), &j); err != nil {
		return JSInfo{}, fmt.Errorf("broinfo: decode jsinfo: %w", err)
	}
	return j, nil
}
