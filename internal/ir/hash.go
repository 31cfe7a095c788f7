package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExpression = "senselogic/expression/v1"
	DomainSensor     = "senselogic/sensor/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExpressionFingerprint returns a stable identity for an expression's text
// form. Callers should pass the canonical String() of a parsed tree so that
// formatting differences do not change the fingerprint.
func ExpressionFingerprint(text string) string {
	return hashWithDomain(DomainExpression, []byte(norm.NFC.String(text)))
}

// SensorFingerprint returns a stable identity for a sensor address.
func SensorFingerprint(address string) string {
	return hashWithDomain(DomainSensor, []byte(address))
}
