package device

import "strings"

// Summary is a human-readable description of the device behind a
// request, shown in session listings and recorded with login attempts.
type Summary struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Name    string `json:"name"`
}

// Summarize derives a Summary from the User-Agent string. The parsing is
// intentionally coarse: it only needs to produce a recognizable label
// like "Chrome on Windows".
func Summarize(userAgent string) Summary {
	s := Summary{
		Browser: parseBrowser(userAgent),
		OS:      parseOS(userAgent),
	}
	switch {
	case s.Browser == "" && s.OS == "":
		s.Name = "Unknown device"
	case s.Browser == "":
		s.Name = s.OS
	case s.OS == "":
		s.Name = s.Browser
	default:
		s.Name = s.Browser + " on " + s.OS
	}
	return s
}

func parseBrowser(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/"):
		return "Edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		return "Opera"
	case strings.Contains(lower, "chrome/"):
		return "Chrome"
	case strings.Contains(lower, "firefox/"):
		return "Firefox"
	case strings.Contains(lower, "safari/"):
		return "Safari"
	default:
		return ""
	}
}

func parseOS(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad"):
		return "iOS"
	case strings.Contains(lower, "mac os"):
		return "macOS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	default:
		return ""
	}
}
