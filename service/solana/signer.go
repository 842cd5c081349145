package solana

import "github.com/gagliardetto/solana-go"

// Signer is the issuer's signing identity. Settlement code depends on this
// interface rather than a raw keypair so key custody can move to an HSM or a
// remote signing service without touching transaction building.
type Signer interface {
	// PublicKey is the signing identity's address. It pays fees and fills
	// the issuer slot of settlement instructions.
	PublicKey() solana.PublicKey

	// SignTransaction signs the transaction in place.
	SignTransaction(tx *solana.Transaction) error
}

// KeypairSigner signs with an in-memory ed25519 keypair.
type KeypairSigner struct {
	key solana.PrivateKey
}

// NewKeypairSigner wraps a private key as a Signer.
func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	return err
}
