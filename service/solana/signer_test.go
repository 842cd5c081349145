package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypairSigner(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	signer := NewKeypairSigner(key)

	assert.Equal(t, key.PublicKey(), signer.PublicKey())

	ix, err := NewCreateATAIdempotentInstruction(signer.PublicKey(), testHolder, testMint)
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.Hash{},
		solana.TransactionPayer(signer.PublicKey()),
	)
	require.NoError(t, err)

	require.NoError(t, signer.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	require.NoError(t, tx.VerifySignatures())
}
