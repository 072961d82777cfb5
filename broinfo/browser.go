package broinfo

import "strings"

// Browser is the reconstructed classification returned to callers that ask
// for it. It is derived from the event alone and never stored.
type Browser struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mobile   bool   `json:"mobile"`
}

// Browser classifies the event's user agent, falling back to the JS-reported
// platform when the UA carries no platform hint.
func (ev *Event) Browser() *Browser {
	b := classifyUserAgent(ev.UserAgent)
	if b.Platform == "" {
		b.Platform = ev.JSInfo.Platform
	}
	return b
}

// Token order matters: Chrome-derived browsers keep "Chrome/" in their UA, so
// the more specific products are checked first.
var browserTokens = []struct{ token, name string }{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"SamsungBrowser/", "Samsung Internet"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"CriOS/", "Chrome"},
	{"FxiOS/", "Firefox"},
}

func classifyUserAgent(ua string) *Browser {
	b := &Browser{Name: "Unknown"}

	for _, t := range browserTokens {
		if i := strings.Index(ua, t.token); i >= 0 {
			b.Name = t.name
			b.Version = versionAfter(ua, i+len(t.token))
			break
		}
	}
	// Safari reports its real version behind "Version/".
	if b.Name == "Unknown" && strings.Contains(ua, "Safari/") {
		b.Name = "Safari"
		if i := strings.Index(ua, "Version/"); i >= 0 {
			b.Version = versionAfter(ua, i+len("Version/"))
		}
	}

	switch {
	case strings.Contains(ua, "Windows"):
		b.Platform = "Windows"
	case strings.Contains(ua, "Android"):
		b.Platform = "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		b.Platform = "iOS"
	case strings.Contains(ua, "Macintosh"), strings.Contains(ua, "Mac OS X"):
		b.Platform = "macOS"
	case strings.Contains(ua, "Linux"):
		b.Platform = "Linux"
	}

	b.Mobile = strings.Contains(ua, "Mobile") ||
		b.Platform == "Android" || b.Platform == "iOS"
	return b
}

func versionAfter(ua string, start int) string {
	end := start
	for end < len(ua) {
		c := ua[end]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		end++
	}
	return ua[start:end]
}
