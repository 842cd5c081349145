package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSASProgram   = solana.MustPublicKeyFromBase58("22zoJMtdu4tQc2PzL74ZUT7FrwgB1Udec8DdW4yw4BdG")
	testOrderProgram = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	testCredential   = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testSchema       = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	testHolder       = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	testMint         = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func TestDeriveAttestationAddress_Deterministic(t *testing.T) {
	a, err := DeriveAttestationAddress(testCredential, testSchema, testHolder, testSASProgram)
	require.NoError(t, err)
	require.False(t, a.IsZero())

	b, err := DeriveAttestationAddress(testCredential, testSchema, testHolder, testSASProgram)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveAttestationAddress_SeedOrderMatters(t *testing.T) {
	a, err := DeriveAttestationAddress(testCredential, testSchema, testHolder, testSASProgram)
	require.NoError(t, err)

	// Swapping credential and schema must produce a different address.
	b, err := DeriveAttestationAddress(testSchema, testCredential, testHolder, testSASProgram)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveAttestationAddress_VariesByHolder(t *testing.T) {
	a, err := DeriveAttestationAddress(testCredential, testSchema, testHolder, testSASProgram)
	require.NoError(t, err)

	b, err := DeriveAttestationAddress(testCredential, testSchema, testMint, testSASProgram)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveProgramAuthorityAddress(t *testing.T) {
	a, err := DeriveProgramAuthorityAddress(testMint, testOrderProgram)
	require.NoError(t, err)
	require.False(t, a.IsZero())

	b, err := DeriveProgramAuthorityAddress(testMint, testOrderProgram)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Different mint, different authority.
	c, err := DeriveProgramAuthorityAddress(testCredential, testOrderProgram)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDeriveAssociatedTokenAddress(t *testing.T) {
	a, err := DeriveAssociatedTokenAddress(testHolder, testMint)
	require.NoError(t, err)

	// Cross-check against the library's own derivation.
	expected, _, err := solana.FindAssociatedTokenAddress(testHolder, testMint)
	require.NoError(t, err)
	assert.Equal(t, expected, a)
}
