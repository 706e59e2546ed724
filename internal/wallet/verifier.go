package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey = errors.New("invalid encryption public key")
)

// SignatureVerifier decides whether a signature proves control of a wallet
// address. The contract is strict: any failure is an error, there is no
// environment-conditioned bypass. Tests substitute a mock.
type SignatureVerifier interface {
	Verify(ctx context.Context, address, signature string) error
}

// Ed25519Verifier treats the wallet address as the 0x-hex encoding of an
// Ed25519 public key. The client signs the challenge text for its own
// address; the signature travels 0x-hex encoded.
type Ed25519Verifier struct {
	service string
}

// NewEd25519Verifier constructs a verifier. The service name is baked into
// the challenge so signatures cannot be replayed across deployments.
func NewEd25519Verifier(service string) *Ed25519Verifier {
	return &Ed25519Verifier{service: service}
}

// Challenge is the exact text a wallet must sign for the given address.
func (v *Ed25519Verifier) Challenge(address string) string {
	return fmt.Sprintf("Sign this message to authenticate with %s: %s", v.service, address)
}

// Verify checks the signature over the challenge text against the public key
// embedded in the address.
func (v *Ed25519Verifier) Verify(_ context.Context, address, signature string) error {
	pubkey, err := decodeHex(address, ed25519.PublicKeySize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	sig, err := decodeHex(signature, ed25519.SignatureSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !ed25519.Verify(ed25519.PublicKey(pubkey), []byte(v.Challenge(address)), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func decodeHex(s string, want int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex encoding")
	}
	if len(decoded) != want {
		return nil, fmt.Errorf("must be %d bytes, got %d", want, len(decoded))
	}
	return decoded, nil
}

// boxKeySize is the length of a NaCl box public key.
const boxKeySize = 32

// ValidatePublicKey checks that a base64 string decodes to a well-formed
// client encryption key. The server stores the key verbatim and never uses
// it for cryptography.
func ValidatePublicKey(publicKeyB64 string) error {
	decoded, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}
	if len(decoded) != boxKeySize {
		return fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, boxKeySize, len(decoded))
	}
	return nil
}
