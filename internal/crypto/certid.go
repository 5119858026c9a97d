package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// CertificateIDLength is the length of a public certificate id in hex
// characters (8 random bytes).
const CertificateIDLength = 16

// NewCertificateID returns an unpredictable public certificate identifier.
// Ids are never derived from user data, so they cannot be enumerated.
func NewCertificateID() (string, error) {
	buf := make([]byte, CertificateIDLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
