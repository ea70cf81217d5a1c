package common

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// MakeRandHexString returns size random bytes from crypto/rand encoded as hex,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomString draws n characters from alphabet using bytes read from r.
// Bytes that would bias the distribution are rejected and redrawn.
func RandomString(r io.Reader, alphabet string, n int) (string, error) {
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", errors.New("alphabet must contain 1..256 characters")
	}

	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, 1)

	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		out = append(out, alphabet[int(buf[0])%len(alphabet)])
	}

	return string(out), nil
}
