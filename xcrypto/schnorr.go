package xcrypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// SchnorrSigner implements Signer with a Schnorr-like signature scheme
// over secp256k1 (spec §6: "a Schnorr-like signature scheme on an
// elliptic curve"), satisfying the out-of-scope crypto boundary's default.
type SchnorrSigner struct {
	priv *secp256k1.PrivateKey
	pub  [32]byte
}

// NewSchnorrSigner builds a signer from a 32-byte private scalar.
func NewSchnorrSigner(privateKey [32]byte) *SchnorrSigner {
	priv := secp256k1.PrivKeyFromBytes(privateKey[:])
	var pub [32]byte
	copy(pub[:], serializeXOnly(priv.PubKey()))
	return &SchnorrSigner{priv: priv, pub: pub}
}

func (s *SchnorrSigner) PublicKey() [32]byte { return s.pub }

func (s *SchnorrSigner) Sign(digest [32]byte) ([64]byte, error) {
	var out [64]byte
	sig, err := schnorr.Sign(s.priv, digest[:])
	if err != nil {
		return out, fmt.Errorf("schnorr sign: %w", err)
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// SchnorrVerifier implements Verifier with the matching verification side.
type SchnorrVerifier struct{}

// NewSchnorrVerifier returns the default Verifier.
func NewSchnorrVerifier() SchnorrVerifier { return SchnorrVerifier{} }

func (SchnorrVerifier) Verify(publicKey [32]byte, digest [32]byte, signature [64]byte) bool {
	pub, err := schnorr.ParsePubKey(publicKey[:])
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature[:])
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pub)
}

// serializeXOnly returns the 32-byte x-only encoding schnorr.ParsePubKey
// expects.
func serializeXOnly(pub *secp256k1.PublicKey) []byte {
	out := make([]byte, 32)
	x := pub.X()
	x.PutBytesUnchecked(out)
	return out
}
