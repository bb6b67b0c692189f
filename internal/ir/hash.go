package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed hashes.
// Version suffix enables future algorithm migration.
const (
	DomainContent = "snipd/content/v1"
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

// ContentHash returns the identity of a snippet's content.
//
// Content is NFC-normalized first so that visually identical text pasted
// from different editors compares equal when deciding whether a new
// revision is needed.
func ContentHash(content string) string {
	return hashWithDomain(DomainContent, []byte(norm.NFC.String(content)))
}

// SameContent reports whether two contents hash to the same identity.
func SameContent(a, b string) bool {
	return ContentHash(a) == ContentHash(b)
}
