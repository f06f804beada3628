package drafts

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
)

// Fingerprint hashes the stored content of p. The session id is not content:
// two sessions writing the same document produce the same fingerprint.
func Fingerprint(p adapters.DraftPayload) (string, error) {
	p.SessionID = ""
	raw, err := p.JSON()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ETag renders a fingerprint as a strong entity tag.
func ETag(fingerprint string) string {
	return `"` + fingerprint + `"`
}
