package util

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress gunzips data.
func Decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	return out, nil
}

// CompressToBase64URL gzips data and encodes it as unpadded base64url, the
// encodedList format of status list credentials.
func CompressToBase64URL(data []byte) (string, error) {
	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// DecompressFromBase64URL reverses CompressToBase64URL. Padded input is
// accepted too.
func DecompressFromBase64URL(data string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		if compressed, err = base64.URLEncoding.DecodeString(data); err != nil {
			return nil, fmt.Errorf("failed to decode encoded list: %w", err)
		}
	}
	return Decompress(compressed)
}

// NewBitstring returns a zeroed bitstring holding at least size bits.
func NewBitstring(size int) []byte {
	return make([]byte, (size+7)/8)
}

// BitAt reads bit index of list. Bits are numbered least significant first
// within each byte.
func BitAt(list []byte, index int) (bool, error) {
	if index < 0 || index/8 >= len(list) {
		return false, fmt.Errorf("bit index %d out of range for %d-bit list", index, len(list)*8)
	}
	return (list[index/8]>>(index%8))&1 == 1, nil
}

// SetBit sets bit index of list.
func SetBit(list []byte, index int) error {
	if index < 0 || index/8 >= len(list) {
		return fmt.Errorf("bit index %d out of range for %d-bit list", index, len(list)*8)
	}
	list[index/8] |= 1 << (index % 8)
	return nil
}
