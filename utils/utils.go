package utils

import (
	"crypto/rand"
	"encoding/base64"
	"unsafe"
)

type Key string

// B2S converts without copying; the slice must not be modified afterwards.
func B2S(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2B converts without copying; the returned slice must not be modified.
func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func GenerateRandomString(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:n], nil
}
