package validator

import "strings"

// decodePercentOnce replaces %XX percent-encoded byte sequences with their
// decoded byte, one decoding layer at a time. It reports whether anything
// was decoded, so callers can detect and unwind multiply-encoded input.
func decodePercentOnce(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			b.WriteByte(hexPairToByte(s[i+1], s[i+2]))
			i += 2
			changed = true
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), changed
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexPairToByte(hi, lo byte) byte {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// decodeFully unwinds nested percent-encoding (callers have been seen
// double- and triple-encoding path separators to slip past naive checks),
// stopping as soon as a pass makes no further change.
func decodeFully(s string) string {
	for i := 0; i < 5; i++ {
		next, changed := decodePercentOnce(s)
		if !changed {
			break
		}
		s = next
	}
	return s
}

// DetectPathTraversal reports whether input resolves, after fully
// unwinding percent-encoding and normalizing Windows separators, to a path
// containing a ".." segment. Use this to reject identifiers that are about
// to be interpolated into a filesystem path (vote IDs, task IDs).
func DetectPathTraversal(input string) bool {
	decoded := strings.ReplaceAll(decodeFully(input), "\\", "/")
	for _, part := range strings.Split(decoded, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizePath strips ".", "..", and empty segments from a decoded,
// slash-normalized copy of input, returning a path with no traversal
// potential. It does not reintroduce a leading "/", so the result is
// always safe to join under a trusted base directory.
func SanitizePath(input string) string {
	decoded := strings.ReplaceAll(decodeFully(input), "\\", "/")
	parts := strings.Split(decoded, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, "/")
}
