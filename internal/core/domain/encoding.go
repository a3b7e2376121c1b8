package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// EncodingVersion tags the canonical layout. A layout change bumps it so old
// and new encodings of the same fields never collide.
const EncodingVersion byte = 1

const (
	maxFieldLen  = math.MaxUint16
	currencyLen  = 3
	fixedHeader  = 1 + 8 + 8 + 1 + DigestSize + 8
	fixedPayment = 8 + currencyLen
)

// TimestampOffset is the position of the big-endian UnixNano timestamp.
const TimestampOffset = 1 + 8

// NonceOffset is the position of the big-endian nonce inside CanonicalEncode's
// output, letting the miner patch candidates in place.
const NonceOffset = fixedHeader - 8

var errTruncated = errors.New("truncated encoding")

// CanonicalEncode serializes every field of b except Hash into the byte
// sequence the hasher consumes. The output is a pure function of the fields:
// integers are fixed-width big-endian, strings are u16 length-prefixed and the
// timestamp is UTC nanoseconds.
func CanonicalEncode(b Block) ([]byte, error) {
	p := b.Payment
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount %d", ErrInvalidPayload, p.Amount)
	}
	if len(p.Currency) != currencyLen {
		return nil, fmt.Errorf("%w: currency must be %d bytes", ErrInvalidPayload, currencyLen)
	}
	for _, s := range []string{p.SenderID, p.ReceiverID, p.ReferenceID} {
		if len(s) > maxFieldLen {
			return nil, fmt.Errorf("%w: field exceeds %d bytes", ErrInvalidPayload, maxFieldLen)
		}
	}

	size := fixedHeader + fixedPayment + 3*2 + len(p.SenderID) + len(p.ReceiverID) + len(p.ReferenceID)
	buf := make([]byte, 0, size)

	buf = append(buf, EncodingVersion)
	buf = binary.BigEndian.AppendUint64(buf, b.Index)
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Timestamp.UnixNano()))
	buf = append(buf, b.Difficulty)
	buf = append(buf, b.PreviousHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, b.Nonce)

	buf = appendString(buf, p.SenderID)
	buf = appendString(buf, p.ReceiverID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Amount))
	buf = append(buf, p.Currency...)
	buf = appendString(buf, p.ReferenceID)

	return buf, nil
}

// EncodeSealed appends the block hash to its canonical encoding. This is the
// plaintext placed inside an envelope.
func EncodeSealed(b Block) ([]byte, error) {
	buf, err := CanonicalEncode(b)
	if err != nil {
		return nil, err
	}
	return append(buf, b.Hash[:]...), nil
}

// DecodeSealed is the inverse of EncodeSealed. It rejects unknown versions
// and trailing bytes.
func DecodeSealed(data []byte) (Block, error) {
	r := reader{buf: data}
	var b Block

	version := r.byte()
	if r.err == nil && version != EncodingVersion {
		return Block{}, fmt.Errorf("unsupported encoding version %d", version)
	}
	b.Index = r.uint64()
	b.Timestamp = time.Unix(0, int64(r.uint64())).UTC()
	b.Difficulty = r.byte()
	r.digest(&b.PreviousHash)
	b.Nonce = r.uint64()
	b.Payment.SenderID = r.string()
	b.Payment.ReceiverID = r.string()
	b.Payment.Amount = int64(r.uint64())
	b.Payment.Currency = string(r.bytes(currencyLen))
	b.Payment.ReferenceID = r.string()
	r.digest(&b.Hash)

	if r.err != nil {
		return Block{}, fmt.Errorf("decoding block: %w", r.err)
	}
	if len(r.buf) != 0 {
		return Block{}, fmt.Errorf("decoding block: %d trailing bytes", len(r.buf))
	}
	if b.Payment.Amount < 0 {
		return Block{}, fmt.Errorf("decoding block: %w: negative amount", ErrInvalidPayload)
	}
	return b, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// reader consumes a byte slice and records the first short read.
type reader struct {
	buf []byte
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = errTruncated
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) byte() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) string() string {
	l := r.bytes(2)
	if l == nil {
		return ""
	}
	return string(r.bytes(int(binary.BigEndian.Uint16(l))))
}

func (r *reader) digest(d *Digest) {
	copy(d[:], r.bytes(DigestSize))
}
