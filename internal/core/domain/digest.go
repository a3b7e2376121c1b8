package domain

import (
	"encoding/hex"
	"fmt"
	"math/bits"
)

// DigestSize is the length in bytes of a block digest (SHA-256).
const DigestSize = 32

// Digest is the fixed-size hash of a block's canonical encoding.
type Digest [DigestSize]byte

// ZeroDigest is the sentinel previous hash of the genesis block.
var ZeroDigest Digest

// IsZero reports whether d is the all-zero sentinel.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// String returns the lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// LeadingZeroBits counts the zero bits before the first set bit.
func (d Digest) LeadingZeroBits() int {
	n := 0
	for _, b := range d {
		if b == 0 {
			n += 8
			continue
		}
		return n + bits.LeadingZeros8(b)
	}
	return n
}

// MeetsDifficulty reports whether the digest has at least difficulty leading zero bits.
func (d Digest) MeetsDifficulty(difficulty uint8) bool {
	return d.LeadingZeroBits() >= int(difficulty)
}

// MarshalText renders the digest as hex for JSON.
func (d Digest) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(DigestSize))
	hex.Encode(out, d[:])
	return out, nil
}

// UnmarshalText parses a 64-character hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a hex-encoded digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decoding digest: %w", err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}
