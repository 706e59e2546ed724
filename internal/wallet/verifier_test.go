package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(pub), priv
}

func TestVerifyValidSignature(t *testing.T) {
	v := NewEd25519Verifier("messaging-service")
	address, priv := newWallet(t)

	sig := ed25519.Sign(priv, []byte(v.Challenge(address)))
	err := v.Verify(context.Background(), address, "0x"+hex.EncodeToString(sig))
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := NewEd25519Verifier("messaging-service")
	address, _ := newWallet(t)
	_, otherPriv := newWallet(t)

	sig := ed25519.Sign(otherPriv, []byte(v.Challenge(address)))
	err := v.Verify(context.Background(), address, "0x"+hex.EncodeToString(sig))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsTamperedChallenge(t *testing.T) {
	v := NewEd25519Verifier("messaging-service")
	address, priv := newWallet(t)

	sig := ed25519.Sign(priv, []byte("some other text"))
	err := v.Verify(context.Background(), address, "0x"+hex.EncodeToString(sig))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsMalformedAddress(t *testing.T) {
	v := NewEd25519Verifier("messaging-service")

	err := v.Verify(context.Background(), "0xzzzz", "0x00")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	// Right encoding, wrong length.
	err = v.Verify(context.Background(), "0xabcd", "0x00")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	v := NewEd25519Verifier("messaging-service")
	address, _ := newWallet(t)

	err := v.Verify(context.Background(), address, "0xdead")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestChallengeBindsServiceAndAddress(t *testing.T) {
	v := NewEd25519Verifier("svc-a")
	address, _ := newWallet(t)

	challenge := v.Challenge(address)
	assert.Contains(t, challenge, "svc-a")
	assert.Contains(t, challenge, address)
	assert.NotEqual(t, challenge, NewEd25519Verifier("svc-b").Challenge(address))
}

func TestValidatePublicKey(t *testing.T) {
	key := make([]byte, 32)
	assert.NoError(t, ValidatePublicKey(base64.StdEncoding.EncodeToString(key)))

	assert.ErrorIs(t, ValidatePublicKey("not base64!!"), ErrInvalidPublicKey)
	assert.ErrorIs(t, ValidatePublicKey(base64.StdEncoding.EncodeToString(key[:16])), ErrInvalidPublicKey)
}
