package secretbox

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)

	sealed, err := Seal("evolution-api-key", key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "evolution-api-key" {
		t.Fatal("sealed value must not equal plaintext")
	}

	plain, err := Open(sealed, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "evolution-api-key" {
		t.Fatalf("got %q", plain)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := Seal("secret", bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(sealed, bytes.Repeat([]byte{2}, 32)); err == nil {
		t.Fatal("expected decrypt failure with wrong key")
	}
}

func TestShortKeyRejected(t *testing.T) {
	if _, err := Seal("x", []byte("short")); !errors.Is(err, ErrKeySize) {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
