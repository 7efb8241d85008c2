package keygen_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jmerrifield20/keygate/internal/keygen"
)

func TestGenerate_format(t *testing.T) {
	key, err := keygen.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != 23 {
		t.Errorf("expected 23 chars (4 groups of 5 + 3 dashes), got %d: %q", len(key), key)
	}
	if !keygen.Valid(key) {
		t.Errorf("generated key %q does not pass Valid", key)
	}
	if strings.ToUpper(key) != key {
		t.Errorf("expected uppercase key, got %q", key)
	}
}

func TestGenerate_distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := keygen.Generate()
		if err != nil {
			t.Fatal(err)
		}
		if seen[key] {
			t.Fatalf("duplicate key after %d generations: %q", i, key)
		}
		seen[key] = true
	}
}

func TestGenerate_deterministicReader(t *testing.T) {
	src := bytes.NewReader([]byte{0xa1, 0xb2, 0xc3, 0xd4, 0xe5, 0xf6, 0x01, 0x23, 0x45, 0x67})
	key, err := keygen.NewWithReader(src).Generate()
	if err != nil {
		t.Fatal(err)
	}
	if want := "A1B2C-3D4E5-F6012-34567"; key != want {
		t.Errorf("got %q, want %q", key, want)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate_entropyFailure(t *testing.T) {
	key, err := keygen.NewWithReader(failingReader{}).Generate()
	if err == nil {
		t.Fatal("expected error from failing entropy source")
	}
	if key != "" {
		t.Errorf("expected empty key on failure, got %q", key)
	}
}

func TestGenerate_shortRead(t *testing.T) {
	_, err := keygen.NewWithReader(bytes.NewReader([]byte{1, 2, 3})).Generate()
	if err == nil {
		t.Fatal("expected error on short entropy read")
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"A1B2C-3D4E5-F6012-34567": true,
		"a1b2c-3d4e5-f6012-34567": false,
		"A1B2C-3D4E5-F6012":       false,
		"A1B2C3D4E5F601234567":    false,
		"A1B2C-3D4E5-F6012-3456G": false,
		"A1B2C-3D4E5-F6012-3456":  false,
		"":                        false,
	}
	for in, want := range cases {
		if got := keygen.Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}
