// Package util provides small internal helpers shared across packages.
package util

// SafeTruncate truncates a string to maxLen characters, appending "..."
// when truncation occurred. Used to keep logged identifiers bounded.
func SafeTruncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
