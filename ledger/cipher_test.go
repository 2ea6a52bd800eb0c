package ledger

import (
	"testing"

	"github.com/energyledger/client/xcrypto"
	"github.com/stretchr/testify/require"
)

func TestStreamCipherRoundTrips(t *testing.T) {
	cipher := NewStreamCipher(xcrypto.NewBlake3Hasher(), []byte("a-test-seed"))

	plaintext := []byte("hello, energy ledger")
	ciphertext, err := cipher.XOR(7, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	roundTrip, err := cipher.XOR(7, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, roundTrip)
}

func TestStreamCipherDiffersByCounter(t *testing.T) {
	cipher := NewStreamCipher(xcrypto.NewBlake3Hasher(), []byte("a-test-seed"))
	plaintext := []byte("same input, different counter")

	a, err := cipher.XOR(1, plaintext)
	require.NoError(t, err)
	b, err := cipher.XOR(2, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
