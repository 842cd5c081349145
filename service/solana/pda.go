package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Program-derived address computation. These are pure functions of their
// inputs; the seed lists are a cross-program contract and must match the
// on-chain programs byte for byte.

// DeriveAttestationAddress computes the attestation account address for a
// holder under the attestation service. Seeds: credential, schema, holder,
// in that order.
func DeriveAttestationAddress(
	credential, schema, holder, sasProgram solana.PublicKey,
) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			credential.Bytes(),
			schema.Bytes(),
			holder.Bytes(),
		},
		sasProgram,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive attestation address: %w", err)
	}
	return addr, nil
}

// DeriveProgramAuthorityAddress computes the mint-scoped authority address
// owned by the order program. Seeds: the literal "program_authority", then
// the mint.
func DeriveProgramAuthorityAddress(
	mint, orderProgram solana.PublicKey,
) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("program_authority"),
			mint.Bytes(),
		},
		orderProgram,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive program authority address: %w", err)
	}
	return addr, nil
}

// DeriveAssociatedTokenAddress computes the associated token account address
// for (owner, mint).
func DeriveAssociatedTokenAddress(
	owner, mint solana.PublicKey,
) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address for %s: %w", owner, err)
	}
	return addr, nil
}
