// Package keygen produces the human-readable access keys handed out after a
// completed Linkvertise flow.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// EntropyBytes is the number of random bytes behind every key.
	EntropyBytes = 10

	// GroupSize is the number of hex characters between dashes.
	GroupSize = 5
)

// Generator creates keys from an entropy source.
type Generator struct {
	rand io.Reader
}

// New returns a Generator reading from crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader returns a Generator reading from r. Intended for tests.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns a key such as "A1B2C-3D4E5-F6A7B-8C9D0".
// An error means the entropy source failed and no key must be issued.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, EntropyBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return format(strings.ToUpper(hex.EncodeToString(buf))), nil
}

// Generate is a convenience wrapper around New().Generate().
func Generate() (string, error) {
	return New().Generate()
}

func format(raw string) string {
	groups := make([]string, 0, (len(raw)+GroupSize-1)/GroupSize)
	for len(raw) > GroupSize {
		groups = append(groups, raw[:GroupSize])
		raw = raw[GroupSize:]
	}
	groups = append(groups, raw)
	return strings.Join(groups, "-")
}

// Valid reports whether key has the exact shape produced by Generate.
func Valid(key string) bool {
	groups := strings.Split(key, "-")
	if len(groups) != EntropyBytes*2/GroupSize {
		return false
	}
	for _, g := range groups {
		if len(g) != GroupSize {
			return false
		}
		for _, r := range g {
			if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'F') {
				return false
			}
		}
	}
	return true
}
