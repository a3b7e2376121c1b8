package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"qr-payment-ledger/internal/core/domain"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// envelopeVersion is the first byte of every code payload.
	envelopeVersion byte = 1
	// envelopeHeaderLen covers version, cipher and expiry; it is the AEAD associated data.
	envelopeHeaderLen = 1 + 1 + 8
)

// codeEncoding rejects non-canonical trailing bits so two different code
// strings never decode to the same envelope.
var codeEncoding = base64.RawURLEncoding.Strict()

// EnvelopeService implements ports.EnvelopeCodec with an AEAD cipher.
// Layout: version(1) | cipher(1) | expires(8) | nonce | ciphertext+tag.
type EnvelopeService struct {
	cipherID domain.CipherID
	aead     cipher.AEAD
	ttl      time.Duration
	now      func() time.Time
}

// NewEnvelopeService creates a codec keyed from a 64-character hex master key.
// The AEAD key is derived from it with HKDF-SHA256 so the same master key
// yields independent keys per cipher. ttl <= 0 issues codes that never expire.
func NewEnvelopeService(hexKey string, cipherName string, ttl time.Duration) (*EnvelopeService, error) {
	master, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding envelope key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("envelope key must be 32 bytes, got %d", len(master))
	}

	id, ok := domain.ParseCipherID(cipherName)
	if !ok {
		return nil, fmt.Errorf("unsupported envelope cipher %q", cipherName)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, master, nil, []byte("ledger-envelope/"+id.String()))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving envelope key: %w", err)
	}

	aead, err := newAEAD(id, key)
	if err != nil {
		return nil, err
	}

	return &EnvelopeService{
		cipherID: id,
		aead:     aead,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func newAEAD(id domain.CipherID, key []byte) (cipher.AEAD, error) {
	switch id {
	case domain.CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("creating cipher: %w", err)
		}
		aesGCM, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM: %w", err)
		}
		return aesGCM, nil
	case domain.CipherXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	}
	return nil, fmt.Errorf("unsupported envelope cipher %d", id)
}

// nonceSize returns the nonce length a cipher id uses on the wire.
func nonceSize(id domain.CipherID) (int, bool) {
	switch id {
	case domain.CipherAES256GCM:
		return 12, true
	case domain.CipherXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, true
	}
	return 0, false
}

// Seal encrypts the block (every field, hash included) under a fresh random
// nonce. The header is authenticated alongside the ciphertext.
func (s *EnvelopeService) Seal(block domain.Block) (domain.Envelope, error) {
	plaintext, err := domain.EncodeSealed(block)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("encoding block: %w", err)
	}

	env := domain.Envelope{
		Version: envelopeVersion,
		Cipher:  s.cipherID,
		Nonce:   make([]byte, s.aead.NonceSize()),
	}
	if s.ttl > 0 {
		env.ExpiresAt = s.now().Add(s.ttl).UTC().Truncate(time.Second)
	}
	if _, err := io.ReadFull(rand.Reader, env.Nonce); err != nil {
		return domain.Envelope{}, fmt.Errorf("generating nonce: %w", err)
	}

	env.Ciphertext = s.aead.Seal(nil, env.Nonce, plaintext, envelopeHeader(env))
	return env, nil
}

// Open authenticates and decrypts an envelope. Every failure, whether a wrong
// key, a corrupted byte or an unknown version, is domain.ErrTamperedEnvelope.
func (s *EnvelopeService) Open(env domain.Envelope) (domain.Block, error) {
	if env.Version != envelopeVersion {
		return domain.Block{}, fmt.Errorf("%w: unsupported version %d", domain.ErrTamperedEnvelope, env.Version)
	}
	if env.Cipher != s.cipherID {
		return domain.Block{}, fmt.Errorf("%w: cipher %s not accepted", domain.ErrTamperedEnvelope, env.Cipher)
	}
	if len(env.Nonce) != s.aead.NonceSize() {
		return domain.Block{}, fmt.Errorf("%w: bad nonce length", domain.ErrTamperedEnvelope)
	}

	plaintext, err := s.aead.Open(nil, env.Nonce, env.Ciphertext, envelopeHeader(env))
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: %w", domain.ErrTamperedEnvelope, err)
	}

	block, err := domain.DecodeSealed(plaintext)
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: %w", domain.ErrTamperedEnvelope, err)
	}
	return block, nil
}

// EncodeCode renders an envelope as the URL-safe string embedded in a scannable code.
func (s *EnvelopeService) EncodeCode(env domain.Envelope) string {
	raw := make([]byte, 0, envelopeHeaderLen+len(env.Nonce)+len(env.Ciphertext))
	raw = append(raw, envelopeHeader(env)...)
	raw = append(raw, env.Nonce...)
	raw = append(raw, env.Ciphertext...)
	return codeEncoding.EncodeToString(raw)
}

// DecodeCode parses a code string back into an envelope. It does not
// authenticate; Open does.
func (s *EnvelopeService) DecodeCode(code string) (domain.Envelope, error) {
	raw, err := codeEncoding.DecodeString(code)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: malformed code: %w", domain.ErrTamperedEnvelope, err)
	}
	if len(raw) < envelopeHeaderLen {
		return domain.Envelope{}, fmt.Errorf("%w: code too short", domain.ErrTamperedEnvelope)
	}

	env := domain.Envelope{
		Version: raw[0],
		Cipher:  domain.CipherID(raw[1]),
	}
	if secs := int64(binary.BigEndian.Uint64(raw[2:envelopeHeaderLen])); secs != 0 {
		env.ExpiresAt = time.Unix(secs, 0).UTC()
	}

	n, ok := nonceSize(env.Cipher)
	if !ok {
		return domain.Envelope{}, fmt.Errorf("%w: unknown cipher %d", domain.ErrTamperedEnvelope, raw[1])
	}
	rest := raw[envelopeHeaderLen:]
	if len(rest) < n {
		return domain.Envelope{}, fmt.Errorf("%w: code too short", domain.ErrTamperedEnvelope)
	}
	env.Nonce = rest[:n]
	env.Ciphertext = rest[n:]
	return env, nil
}

func envelopeHeader(env domain.Envelope) []byte {
	h := make([]byte, envelopeHeaderLen)
	h[0] = env.Version
	h[1] = byte(env.Cipher)
	var secs int64
	if !env.ExpiresAt.IsZero() {
		secs = env.ExpiresAt.Unix()
	}
	binary.BigEndian.PutUint64(h[2:], uint64(secs))
	return h
}
