package observability

import "strings"

// Length caps for request fields logged on every request. Anything longer is
// attacker-controlled noise, not telemetry.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxUserIDLen = 64
)

// stripControl drops control characters except common whitespace and caps the
// rune length so a crafted header cannot inject log lines.
func stripControl(value string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)

	runes := []rune(cleaned)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return cleaned
}

// SanitizeRoute prepares a chi route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return stripControl(route, maxRouteLen)
}

// SanitizeMethod prepares an HTTP method for logging.
func SanitizeMethod(method string) string {
	return stripControl(method, maxMethodLen)
}

// SanitizeUserID caps identifiers before they reach log fields. Prefixed
// ULIDs fit well under the cap; anything longer is not one of ours.
func SanitizeUserID(uid string) string {
	return stripControl(uid, maxUserIDLen)
}
