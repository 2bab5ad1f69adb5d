package adapter

import "strings"

// exchangeSuffixes are Bloomberg-style listing suffixes appended by some issuers
var exchangeSuffixes = map[string]bool{
	"US": true, "UW": true, "UN": true, "UQ": true, "UR": true, "UA": true, "UP": true, "UF": true,
	"EQUITY": true,
}

// NormalizeTicker canonicalizes a vendor ticker.
//
// Policy: uppercase, drop exchange suffixes (" US", " UW", ...), then split a
// single-letter share class off "/", ".", "-" or " " (BRK/B, BRK.B, BF-B, MOG A).
// The builder always keeps the class in the canonical BASE.CLASS form, so
// BRK/B, BRK.B and "BRK B" all become BRK.B.
func NormalizeTicker(raw string) (base, class string) {
	t := strings.ToUpper(strings.Join(strings.Fields(raw), " "))

	for {
		i := strings.LastIndexByte(t, ' ')
		if i < 0 || !exchangeSuffixes[t[i+1:]] {
			break
		}
		t = t[:i]
	}

	if i := strings.LastIndexAny(t, "/.- "); i > 0 && i == len(t)-2 {
		c := t[i+1]
		if c >= 'A' && c <= 'Z' {
			return t[:i], string(c)
		}
	}

	return t, ""
}

// ClassTicker joins a base and a share class in the canonical BASE.CLASS form
func ClassTicker(base, class string) string {
	if class == "" {
		return base
	}
	return base + "." + class
}
