package update

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// VerifyResult is the outcome of the authenticity gate.
type VerifyResult int

const (
	// Verified means the signature matched the configured key.
	Verified VerifyResult = iota
	// Rejected means a key is configured and the file did not verify.
	Rejected
	// SkippedNoKeyConfigured means no key is configured; the file is
	// accepted unsigned.
	SkippedNoKeyConfigured
)

// String returns the string representation of the VerifyResult.
func (r VerifyResult) String() string {
	switch r {
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	default:
		return "skipped-no-key"
	}
}

// Verifier checks detached Ed25519 signatures on downloaded installers
type Verifier struct {
	PublicKey ed25519.PublicKey // Nil when no key is configured
}

// NewVerifier creates a verifier from an encoded public key. An empty
// string yields a verifier with no key configured.
func NewVerifier(encodedKey string) (*Verifier, error) {
	if strings.TrimSpace(encodedKey) == "" {
		return &Verifier{}, nil
	}
	key, err := ParsePublicKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return &Verifier{PublicKey: key}, nil
}

// HasKey reports whether a public key is configured.
func (v *Verifier) HasKey() bool {
	return v != nil && len(v.PublicKey) > 0
}

// Verify checks the file at path against a base64 signature. It reads the
// whole file and changes nothing on disk. A rejected file yields a
// KindVerification error.
func (v *Verifier) Verify(path, signature string) (VerifyResult, error) {
	if !v.HasKey() {
		log.Warnw("using unsigned updates: no public key configured", "file", path)
		return SkippedNoKeyConfigured, nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return Rejected, newError(KindVerification, "update is not signed", nil)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return Rejected, newError(KindVerification, "malformed update signature", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return Rejected, newError(KindVerification, fmt.Sprintf("update signature has %d bytes, want %d", len(sig), ed25519.SignatureSize), nil)
	}

	//nolint:gosec // G304: path is the installer we downloaded
	data, err := os.ReadFile(path)
	if err != nil {
		return Rejected, newError(KindFilesystem, "failed to read downloaded update", err)
	}

	if !ed25519.Verify(v.PublicKey, data, sig) {
		return Rejected, newError(KindVerification, "update signature does not match", nil)
	}
	return Verified, nil
}

// ParsePublicKey decodes an Ed25519 public key given as base64, as 64 hex
// characters, or as a PEM "PUBLIC KEY" block.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-----BEGIN") {
		block, _ := pem.Decode([]byte(s))
		if block == nil {
			return nil, newError(KindConfig, "invalid PEM public key", nil)
		}
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, newError(KindConfig, "invalid PEM public key", err)
		}
		key, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, newError(KindConfig, fmt.Sprintf("unsupported public key type %T", parsed), nil)
		}
		return key, nil
	}

	if len(s) == hex.EncodedLen(ed25519.PublicKeySize) {
		if raw, err := hex.DecodeString(s); err == nil {
			return ed25519.PublicKey(raw), nil
		}
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, newError(KindConfig, "public key is neither PEM, hex nor base64", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, newError(KindConfig, fmt.Sprintf("public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize), nil)
	}
	return ed25519.PublicKey(raw), nil
}
