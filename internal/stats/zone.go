package stats

import "strings"

// UnknownZone is the bucket for reports whose address yields no zone.
const UnknownZone = "Sin zona"

// ZoneOf derives the zone key from a free-form address: leading house-number
// tokens are dropped and the text before the first comma is kept.
//
//	"1234 San Martín, Sarmiento" -> "San Martín"
//	"12, Mendoza"                -> "Mendoza"
func ZoneOf(address string) string {
	s := strings.TrimSpace(address)
	for s != "" {
		tok, rest, _ := strings.Cut(s, " ")
		if !isNumberToken(tok) {
			break
		}
		s = strings.TrimSpace(rest)
	}
	s = strings.TrimLeft(s, ", ")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownZone
	}
	return s
}

func isNumberToken(tok string) bool {
	tok = strings.TrimSuffix(tok, ",")
	if tok == "" {
		return false
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
