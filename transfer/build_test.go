package transfer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/xcrypto"
)

type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }

func newTestSigner(t *testing.T, h xcrypto.Hasher, seed string) *xcrypto.SchnorrSigner {
	t.Helper()
	priv, err := identity.PrivateKey(h, seed, 0)
	require.NoError(t, err)
	return xcrypto.NewSchnorrSigner(priv)
}

func identityString(h xcrypto.Hasher, publicKey [32]byte) string {
	return identity.Derive(h, publicKey).String()
}

func TestBuildProducesSignedHashedRecord(t *testing.T) {
	h := xcrypto.NewBlake3Hasher()
	signer := newTestSigner(t, h, strings.Repeat("a", 55))
	destSigner := newTestSigner(t, h, strings.Repeat("b", 55))
	dest := identityString(h, destSigner.PublicKey())

	record, hash, err := Build(h, signer, dest, 2_000_000, fixedClock(123))
	require.NoError(t, err)
	require.Equal(t, signer.PublicKey(), record.Source)
	require.Equal(t, destSigner.PublicKey(), record.Destination)
	require.Equal(t, uint64(123), record.Timestamp)
	require.Equal(t, uint64(2_000_000), record.Energy)
	require.NotZero(t, hash)
}

func TestBuildRejectsBelowMinimumEnergy(t *testing.T) {
	h := xcrypto.NewBlake3Hasher()
	signer := newTestSigner(t, h, strings.Repeat("a", 55))
	destSigner := newTestSigner(t, h, strings.Repeat("b", 55))
	dest := identityString(h, destSigner.PublicKey())

	_, _, err := Build(h, signer, dest, 1, fixedClock(1))
	require.ErrorIs(t, err, ErrIllegalArgument)
}

func TestBuildRejectsBadChecksum(t *testing.T) {
	h := xcrypto.NewBlake3Hasher()
	signer := newTestSigner(t, h, strings.Repeat("a", 55))
	destSigner := newTestSigner(t, h, strings.Repeat("b", 55))
	dest := identityString(h, destSigner.PublicKey())

	tampered := []byte(dest)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, _, err := Build(h, signer, string(tampered), 2_000_000, fixedClock(1))
	require.ErrorIs(t, err, identity.ErrInvalidChecksum)
}

func TestBuildRejectsUnparseableDestination(t *testing.T) {
	h := xcrypto.NewBlake3Hasher()
	signer := newTestSigner(t, h, strings.Repeat("a", 55))

	_, _, err := Build(h, signer, "not-a-valid-identity", 2_000_000, fixedClock(1))
	require.ErrorIs(t, err, ErrIllegalArgument)
}
