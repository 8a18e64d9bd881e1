package common

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeOpaqueToken_DecodesToRequestedSize(t *testing.T) {
	s, err := MakeOpaqueToken(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(raw))
	}

	other, err := MakeOpaqueToken(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == s {
		t.Fatalf("two opaque tokens are identical")
	}
}

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

func TestGenerateRandByteArray_Basic(t *testing.T) {
	const n = 24
	buf := GenerateRandByteArray(n)
	if len(buf) != n {
		t.Fatalf("expected length %d, got %d", n, len(buf))
	}
}

func TestIsUnauthenticated(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrInvalidToken, true},
		{ErrExpiredToken, true},
		{ErrInvalidSignature, true},
		{fmt.Errorf("wrapped: %w", ErrUserNotFound), true},
		{ErrInvalidCredentials, false},
		{ErrStorageFailure, false},
		{errors.New("boom"), false},
	}
	for _, tc := range tests {
		if got := IsUnauthenticated(tc.err); got != tc.want {
			t.Errorf("IsUnauthenticated(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
