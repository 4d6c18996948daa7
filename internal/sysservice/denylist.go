package sysservice

import "regexp"

// denylistPatterns are compiled once and checked against the raw
// command string before execution. The set is illustrative, not
// exhaustive, per the specification ("including but not limited to").
var denylistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+-rf\s+~`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|\s*:&\s*\}\s*;\s*:`), // fork bomb
	regexp.MustCompile(`dd\s+if=/dev/zero`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`(wget|curl)\b.*\|\s*(bash|sh)\b`),
	regexp.MustCompile(`/dev/tcp/`),
	regexp.MustCompile(`base64\s+/etc/passwd`),
}

// isBlocked reports whether cmd matches any denylisted pattern.
func isBlocked(cmd string) bool {
	for _, p := range denylistPatterns {
		if p.MatchString(cmd) {
			return true
		}
	}
	return false
}
