package internal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewRefreshValueSizeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 32)
	for i := 0; i < 32; i++ {
		v, err := NewRefreshValue()
		if err != nil {
			t.Fatalf("NewRefreshValue: %v", err)
		}
		raw, err := DecodeRefreshValue(v)
		if err != nil {
			t.Fatalf("DecodeRefreshValue: %v", err)
		}
		if len(raw) != RefreshValueSize {
			t.Fatalf("got %d bytes, want %d", len(raw), RefreshValueSize)
		}
		if _, dup := seen[v]; dup {
			t.Fatal("duplicate refresh value")
		}
		seen[v] = struct{}{}
	}
}

func TestNewRefreshValueFromShortReader(t *testing.T) {
	if _, err := NewRefreshValueFrom(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Fatal("expected short read to fail")
	}
}

func TestDecodeRefreshValueRejectsWrongLength(t *testing.T) {
	if _, err := DecodeRefreshValue(strings.Repeat("A", 16)); !errors.Is(err, ErrRefreshValueFormat) {
		t.Fatalf("expected ErrRefreshValueFormat, got %v", err)
	}
}
