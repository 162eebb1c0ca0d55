package api

import (
	"bytes"
	"errors"
	"testing"
)

func TestSecureCookieCodecRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := newSecureCookieCodec([]byte(testSecretKey))
	if err != nil {
		t.Fatalf("newSecureCookieCodec() unexpected error: %v", err)
	}

	sealed, err := codec.seal(flashCookiePurpose, []byte(`{"notice":"Upload successful"}`))
	if err != nil {
		t.Fatalf("seal() unexpected error: %v", err)
	}
	if bytes.Contains([]byte(sealed), []byte("Upload successful")) {
		t.Fatal("expected sealed value not to expose plaintext")
	}

	opened, err := codec.open(flashCookiePurpose, sealed)
	if err != nil {
		t.Fatalf("open() unexpected error: %v", err)
	}
	if string(opened) != `{"notice":"Upload successful"}` {
		t.Fatalf("unexpected plaintext %q", opened)
	}
}

func TestSecureCookieCodecRejectsForeignValues(t *testing.T) {
	t.Parallel()

	codec, err := newSecureCookieCodec([]byte(testSecretKey))
	if err != nil {
		t.Fatalf("newSecureCookieCodec() unexpected error: %v", err)
	}
	sealed, err := codec.seal(flashCookiePurpose, []byte("payload"))
	if err != nil {
		t.Fatalf("seal() unexpected error: %v", err)
	}

	if _, err := codec.open("session", sealed); !errors.Is(err, errInvalidSecureCookieValue) {
		t.Fatalf("expected purpose mismatch to fail, got %v", err)
	}

	other, err := newSecureCookieCodec([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("newSecureCookieCodec() unexpected error: %v", err)
	}
	if _, err := other.open(flashCookiePurpose, sealed); !errors.Is(err, errInvalidSecureCookieValue) {
		t.Fatalf("expected other key to fail, got %v", err)
	}

	for _, raw := range []string{"", "v1.", "v2." + sealed[3:], "v1.!!!"} {
		if _, err := codec.open(flashCookiePurpose, raw); !errors.Is(err, errInvalidSecureCookieValue) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}

func TestDeriveSecureCookieKeyIsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := deriveSecureCookieKey([]byte(testSecretKey))
	if err != nil {
		t.Fatalf("deriveSecureCookieKey() unexpected error: %v", err)
	}
	second, err := deriveSecureCookieKey([]byte(testSecretKey))
	if err != nil {
		t.Fatalf("deriveSecureCookieKey() unexpected error: %v", err)
	}
	if len(first) != 32 || !bytes.Equal(first, second) {
		t.Fatalf("expected stable 32-byte key, got %d bytes", len(first))
	}
	if bytes.Equal(first, []byte(testSecretKey)) {
		t.Fatal("expected derived key to differ from the secret")
	}
}
