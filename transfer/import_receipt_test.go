package transfer

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energyledger/client/events"
	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/ledger"
	"github.com/energyledger/client/quorum"
	"github.com/energyledger/client/transport"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xlog"
)

// identityHasher and acceptAllVerifier mirror transferstatus's own test
// doubles, letting a test build a receipt without real Schnorr signing.
type identityHasher struct{}

func (identityHasher) Hash(data []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, data)
	return out
}

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(publicKey, digest [32]byte, signature [64]byte) bool { return true }

type fakeCryptoSigner struct{ pub [32]byte }

func (s fakeCryptoSigner) PublicKey() [32]byte { return s.pub }
func (s fakeCryptoSigner) Sign(digest [32]byte) ([64]byte, error) {
	var sig [64]byte
	copy(sig[:], digest[:])
	return sig, nil
}

func newFakeCryptoPipeline(t *testing.T) (*Pipeline, *ledger.Ledger) {
	t.Helper()
	h := identityHasher{}
	signer := fakeCryptoSigner{pub: [32]byte{1}}
	verifier := acceptAllVerifier{}
	store := newMemStore()
	l := ledger.New(store, h, signer, verifier, []byte("seed-bytes"), xlog.NewNoOp())
	seedEnergy(t, h, signer, identity.Derive(h, [32]byte{2}).String(), l, 10_000_000)

	dial := func(ctx context.Context, addr string) (transport.Conn, error) {
		return newFakeConn(), nil
	}
	broadcaster := events.NewBroadcaster(8)
	engine := quorum.New(dial, [wire.NumberOfConnections]string{"a", "b", "c"}, time.Second, time.Second, xlog.NewNoOp(), broadcaster, quorum.NewMetrics(nil))

	pipeline := NewPipeline(h, signer, verifier, fixedClock(1_000_000), l, engine, fakeStatusSource{}, broadcaster, xlog.NewNoOp())
	return pipeline, l
}

func buildTestReceipt(hash [32]byte, reporters int) []byte {
	var snapshot wire.ComputerStateRecord
	snapshot.Epoch = 3
	snapshot.Tick = 9
	receipt := snapshot.Encode()

	for reporter := 0; reporter < reporters; reporter++ {
		var r wire.TransferStatusRecord
		r.TransferHash = hash
		r.ComputorIndex = uint16(reporter)
		r.Epoch = snapshot.Epoch
		r.Tick = snapshot.Tick
		for j := 0; j < wire.NumberOfComputors; j++ {
			if j != reporter {
				wire.SetVote(r.Bitfield[:], j, wire.VoteProcessed)
			}
		}
		receipt = append(receipt, r.Encode()...)
	}
	return receipt
}

func TestImportReceiptConfirmsMatchingPendingTransfer(t *testing.T) {
	pipeline, l := newFakeCryptoPipeline(t)

	dest := identity.Derive(identityHasher{}, [32]byte{2}).String()
	hash, err := pipeline.Transfer(dest, 2_000_000)
	require.NoError(t, err)

	receipt := buildTestReceipt(hash, wire.StatusQuorumThreshold)
	encoded := base64.StdEncoding.EncodeToString(receipt)

	require.NoError(t, pipeline.ImportReceipt([32]byte{0xAD}, encoded))
	require.Empty(t, l.PendingTransfers())
	require.True(t, l.HasHash(hash))
}

func TestImportReceiptRejectsBelowQuorumThreshold(t *testing.T) {
	pipeline, l := newFakeCryptoPipeline(t)

	dest := identity.Derive(identityHasher{}, [32]byte{2}).String()
	hash, err := pipeline.Transfer(dest, 2_000_000)
	require.NoError(t, err)

	receipt := buildTestReceipt(hash, wire.StatusQuorumThreshold-1)
	encoded := base64.StdEncoding.EncodeToString(receipt)

	err = pipeline.ImportReceipt([32]byte{0xAD}, encoded)
	require.ErrorIs(t, err, ErrInvalidResponses)
	require.Len(t, l.PendingTransfers(), 1)
}

func TestImportReceiptRejectsUnknownTransferHash(t *testing.T) {
	pipeline, _ := newFakeCryptoPipeline(t)

	receipt := buildTestReceipt([32]byte{0x42}, wire.StatusQuorumThreshold)
	encoded := base64.StdEncoding.EncodeToString(receipt)

	err := pipeline.ImportReceipt([32]byte{0xAD}, encoded)
	require.ErrorIs(t, err, ErrUnknownTransfer)
}
