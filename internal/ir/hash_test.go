package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashDeterminism(t *testing.T) {
	h1 := ContentHash("echo hello")
	h2 := ContentHash("echo hello")

	assert.Equal(t, h1, h2, "ContentHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestContentHashChangesWithContent(t *testing.T) {
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
	assert.NotEqual(t, ContentHash(""), ContentHash(" "))
}

func TestContentHashNFC(t *testing.T) {
	// "é" precomposed vs "e" + combining acute accent
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	assert.NotEqual(t, composed, decomposed)
	assert.True(t, SameContent(composed, decomposed), "NFC-equivalent content must hash equal")
}

func TestContentHashDomainSeparation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t,
		hashWithDomain("snipd/content/v1", data),
		hashWithDomain("snipd/content/v2", data),
	)
}
