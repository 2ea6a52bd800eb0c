package client

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energyledger/client/config"
	"github.com/energyledger/client/events"
	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/transfer"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
)

type constClock uint64

func (c constClock) Now() uint64 { return uint64(c) }

// seedEnergy gives c a starting energy balance by persisting and
// immediately processing a throwaway self-transfer directly against the
// ledger, since a client only ever spends energy (confirm() subtracts,
// never adds) and has no deposit operation of its own.
func seedEnergy(t *testing.T, c *Client, amount uint64) {
	t.Helper()
	record, hash, err := transfer.Build(c.hasher, c.signer, c.Identity(), wire.MinEnergyAmount, constClock(1))
	require.NoError(t, err)
	require.NoError(t, c.ledger.PersistProvisional(record, hash))
	require.NoError(t, c.ledger.PersistProcessed(hash, []byte("seed-receipt"), amount))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.NewBuilder().
		WithSeed(strings.Repeat("a", 55)).
		WithIndex(0).
		WithPeers([config.NumberOfConnections]string{"127.0.0.1:1", "127.0.0.1:2", "127.0.0.1:3"}).
		WithAdminPublicKey([32]byte{0xAD}).
		WithDatabasePath(t.TempDir()).
		WithConnectionTimeout(20 * time.Millisecond).
		WithReconnectTimeout(20 * time.Millisecond).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestNewReplaysEmptyLedgerAndDerivesIdentity(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	defer c.store.Close()

	require.Equal(t, uint64(0), c.Energy())

	hasher := xcrypto.NewBlake3Hasher()
	id, err := identity.Parse(c.Identity())
	require.NoError(t, err)
	require.True(t, identity.Verify(hasher, id))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminPublicKey = [32]byte{}
	_, err := New(cfg, xlog.NewNoOp())
	require.Error(t, err)
}

func TestLaunchTwiceReturnsErrAlreadyLaunched(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)

	require.NoError(t, c.Launch())
	require.ErrorIs(t, c.Launch(), ErrAlreadyLaunched)
	require.NoError(t, c.Terminate(true))
}

func TestTerminateWithoutLaunchReturnsErrNotLaunched(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	defer c.store.Close()

	require.ErrorIs(t, c.Terminate(true), ErrNotLaunched)
}

func TestTransferPersistsPendingTransferAndEmitsEvent(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	seedEnergy(t, c, wire.MinEnergyAmount*2)

	require.NoError(t, c.Launch())
	defer c.Terminate(true)

	ch, id := c.AddEnvironmentListener()
	defer c.RemoveEnvironmentListener(id)

	hasher := xcrypto.NewBlake3Hasher()
	destPriv, err := identity.PrivateKey(hasher, strings.Repeat("b", 55), 0)
	require.NoError(t, err)
	destSigner := xcrypto.NewSchnorrSigner(destPriv)
	dest := identity.Derive(hasher, destSigner.PublicKey()).String()

	hash, err := c.Transfer(dest, wire.MinEnergyAmount)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, hash)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind != events.KindTransfer {
				continue // socket open/close and info events share the stream
			}
			require.Equal(t, hash, ev.Transfer.Hash)
			return
		case <-deadline:
			t.Fatal("timed out waiting for transfer event")
		}
	}
}

func TestTransferRejectsBadDestination(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	defer c.store.Close()

	_, err = c.Transfer("not-a-real-identity", wire.MinEnergyAmount)
	require.Error(t, err)
}

func TestTransferRejectsAmountAboveCurrentEnergy(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	defer c.store.Close()

	hasher := xcrypto.NewBlake3Hasher()
	destPriv, err := identity.PrivateKey(hasher, strings.Repeat("b", 55), 0)
	require.NoError(t, err)
	destSigner := xcrypto.NewSchnorrSigner(destPriv)
	dest := identity.Derive(hasher, destSigner.PublicKey()).String()

	_, err = c.Transfer(dest, c.Energy()+wire.MinEnergyAmount)
	require.ErrorIs(t, err, transfer.ErrInsufficientEnergy)
}

func TestImportReceiptRejectsMalformedReceipt(t *testing.T) {
	c, err := New(testConfig(t), xlog.NewNoOp())
	require.NoError(t, err)
	defer c.store.Close()

	err = c.ImportReceipt("bm90LWEtcmVhbC1yZWNlaXB0")
	require.Error(t, err)
}
