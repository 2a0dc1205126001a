// Package scan receives raw card-scan payloads from the broker and
// canonicalizes the identifiers they carry.
package scan

import "strings"

// Normalize canonicalizes a raw card-identifier payload. The second return
// is false when the payload is the device heartbeat sentinel, which is
// discarded silently rather than treated as a scan.
//
// A bare run of hex digits is upper-cased and regrouped into colon-separated
// byte pairs ("AABBCCDD" -> "AA:BB:CC:DD"), matching the canonical form used
// in storage. Payloads already colon-separated pass through upper-cased.
// Anything else is passed through unmodified: an unknown format is not an
// error, it simply fails resolution downstream.
func Normalize(payload []byte, heartbeat string) (string, bool) {
	raw := strings.TrimSpace(string(payload))
	if raw == heartbeat {
		return "", false
	}
	id := strings.ToUpper(raw)
	if strings.Contains(id, ":") {
		return id, true
	}
	if len(id) >= 4 && len(id)%2 == 0 && isHex(id) {
		var b strings.Builder
		for i := 0; i < len(id); i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(id[i : i+2])
		}
		return b.String(), true
	}
	return id, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return s != ""
}
