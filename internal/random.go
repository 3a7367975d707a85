package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// RefreshValueSize is the number of random bytes behind every refresh value.
const RefreshValueSize = 256

// ErrRefreshValueFormat is returned for strings that are not encoded refresh values.
var ErrRefreshValueFormat = errors.New("invalid refresh value format")

// NewRefreshValue returns RefreshValueSize bytes from crypto/rand, base64 std-encoded.
func NewRefreshValue() (string, error) {
	return NewRefreshValueFrom(rand.Reader)
}

// NewRefreshValueFrom reads the random bytes from r.
func NewRefreshValueFrom(r io.Reader) (string, error) {
	var raw [RefreshValueSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshValue returns the raw bytes of an encoded refresh value.
func DecodeRefreshValue(value string) ([]byte, error) {
	if base64.StdEncoding.EncodedLen(RefreshValueSize) != len(value) {
		return nil, ErrRefreshValueFormat
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(value)
	if err != nil || len(raw) != RefreshValueSize {
		return nil, ErrRefreshValueFormat
	}
	return raw, nil
}
