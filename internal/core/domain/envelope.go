package domain

import "time"

// CipherID identifies the AEAD used to seal an envelope.
type CipherID byte

const (
	CipherAES256GCM         CipherID = 1
	CipherXChaCha20Poly1305 CipherID = 2
)

// String returns the configuration name of the cipher.
func (c CipherID) String() string {
	switch c {
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherXChaCha20Poly1305:
		return "xchacha20-poly1305"
	}
	return "unknown"
}

// ParseCipherID maps a configuration name to a CipherID.
func ParseCipherID(name string) (CipherID, bool) {
	switch name {
	case "", "aes-256-gcm":
		return CipherAES256GCM, true
	case "xchacha20-poly1305":
		return CipherXChaCha20Poly1305, true
	}
	return 0, false
}

// Envelope is an encrypted, authenticated container for one sealed block.
// It is never stored; only the block it carries is ledger state.
type Envelope struct {
	Version    byte
	Cipher     CipherID
	ExpiresAt  time.Time // zero means the code never expires
	Nonce      []byte
	Ciphertext []byte // includes the authentication tag
}

// Expired reports whether the envelope's expiry has passed at now.
func (e Envelope) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// IssuedCode is the result of sealing a payment: the appended block and the
// scannable code payload that carries it.
type IssuedCode struct {
	Block     Block      `json:"block"`
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Attempts  int        `json:"attempts"`
}
