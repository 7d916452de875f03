package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText collapses every whitespace run to a single space and trims
// the ends, matching how visible text is joined word by word.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint hashes an ordered name list so two cycles can be compared
// without storing the list twice. Order matters.
func Fingerprint(names []string) string {
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
