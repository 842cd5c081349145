package solana

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMintParams() MintParams {
	return MintParams{
		Issuer:                testHolder,
		Config:                testSchema,
		Mint:                  testMint,
		ProgramAuthority:      testCredential,
		RecipientTokenAccount: testMint,
		Recipient:             testHolder,
		Schema:                testSchema,
		Credential:            testCredential,
		Attestation:           testHolder,
		SASProgram:            testSASProgram,
		Amount:                500_000,
	}
}

func TestNewMintInstruction_AccountOrder(t *testing.T) {
	p := testMintParams()
	ix, err := NewMintInstruction(testOrderProgram, p)
	require.NoError(t, err)

	assert.Equal(t, testOrderProgram, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 11)
	assert.Equal(t, p.Issuer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, p.Config, accounts[1].PublicKey)
	assert.Equal(t, p.Mint, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsWritable)
	assert.Equal(t, p.ProgramAuthority, accounts[3].PublicKey)
	assert.Equal(t, p.RecipientTokenAccount, accounts[4].PublicKey)
	assert.True(t, accounts[4].IsWritable)
	assert.Equal(t, p.Recipient, accounts[5].PublicKey)
	assert.Equal(t, p.Schema, accounts[6].PublicKey)
	assert.Equal(t, p.Credential, accounts[7].PublicKey)
	assert.Equal(t, p.Attestation, accounts[8].PublicKey)
	assert.Equal(t, p.SASProgram, accounts[9].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[10].PublicKey)
}

func TestNewMintInstruction_Data(t *testing.T) {
	p := testMintParams()
	ix, err := NewMintInstruction(testOrderProgram, p)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)

	// discriminator(8) + user(32) + amount(8)
	require.Len(t, data, 48)
	assert.Equal(t, anchorDiscriminator("mint"), data[:8])
	assert.Equal(t, p.Recipient.Bytes(), data[8:40])
	assert.Equal(t, p.Amount, binary.LittleEndian.Uint64(data[40:48]))
}

func TestNewBurnInstruction(t *testing.T) {
	p := BurnParams{
		Issuer:            testHolder,
		Config:            testSchema,
		Mint:              testMint,
		ProgramAuthority:  testCredential,
		OwnerTokenAccount: testMint,
		Schema:            testSchema,
		Credential:        testCredential,
		Attestation:       testHolder,
		SASProgram:        testSASProgram,
		Amount:            250_000,
	}
	ix, err := NewBurnInstruction(testOrderProgram, p)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 10)
	assert.Equal(t, p.Issuer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, p.OwnerTokenAccount, accounts[4].PublicKey)
	assert.True(t, accounts[4].IsWritable)
	assert.Equal(t, solana.TokenProgramID, accounts[9].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)

	// discriminator(8) + amount(8)
	require.Len(t, data, 16)
	assert.Equal(t, anchorDiscriminator("burn"), data[:8])
	assert.Equal(t, p.Amount, binary.LittleEndian.Uint64(data[8:16]))
}

func TestNewCreateATAIdempotentInstruction(t *testing.T) {
	ix, err := NewCreateATAIdempotentInstruction(testHolder, testCredential, testMint)
	require.NoError(t, err)

	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())

	expectedATA, _, err := solana.FindAssociatedTokenAddress(testCredential, testMint)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, testHolder, accounts[0].PublicKey) // payer
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, expectedATA, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, testCredential, accounts[2].PublicKey) // owner
	assert.Equal(t, testMint, accounts[3].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	// CreateIdempotent is instruction variant 1.
	assert.Equal(t, []byte{1}, data)
}

func TestNewPayoutInstruction(t *testing.T) {
	source := testCredential
	dest := testSchema
	owner := testHolder

	ix := NewPayoutInstruction(100_000_000, 6, source, testMint, dest, owner)
	assert.Equal(t, solana.TokenProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 4)
	assert.Equal(t, source, accounts[0].PublicKey)
	assert.Equal(t, testMint, accounts[1].PublicKey)
	assert.Equal(t, dest, accounts[2].PublicKey)
	assert.Equal(t, owner, accounts[3].PublicKey)
	assert.True(t, accounts[3].IsSigner)
}

func TestAnchorDiscriminator_Stable(t *testing.T) {
	assert.Equal(t, anchorDiscriminator("mint"), anchorDiscriminator("mint"))
	assert.NotEqual(t, anchorDiscriminator("mint"), anchorDiscriminator("burn"))
	assert.Len(t, anchorDiscriminator("mint"), 8)
}
