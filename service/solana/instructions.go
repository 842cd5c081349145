package solana

import (
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Instruction builders for the order program and the token programs. Account
// ordering is part of the on-chain interface; changing it breaks every
// transaction this service submits.

// anchorDiscriminator computes the 8-byte Anchor instruction discriminator,
// sha256("global:<method>")[0:8].
func anchorDiscriminator(method string) []byte {
	sum := sha256.Sum256([]byte("global:" + method))
	return sum[:8]
}

// MintParams holds the accounts and arguments for the order program's mint
// instruction. The issuer signs and pays; the program re-validates the
// recipient's attestation on-chain.
type MintParams struct {
	Issuer                solana.PublicKey
	Config                solana.PublicKey
	Mint                  solana.PublicKey
	ProgramAuthority      solana.PublicKey
	RecipientTokenAccount solana.PublicKey
	Recipient             solana.PublicKey
	Schema                solana.PublicKey
	Credential            solana.PublicKey
	Attestation           solana.PublicKey
	SASProgram            solana.PublicKey
	Amount                uint64
}

// NewMintInstruction builds the order program's mint instruction.
func NewMintInstruction(program solana.PublicKey, p MintParams) (solana.Instruction, error) {
	data, err := encodeAnchorArgs("mint", struct {
		User   solana.PublicKey
		Amount uint64
	}{p.Recipient, p.Amount})
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Issuer, true, true),
		solana.NewAccountMeta(p.Config, false, false),
		solana.NewAccountMeta(p.Mint, true, false),
		solana.NewAccountMeta(p.ProgramAuthority, false, false),
		solana.NewAccountMeta(p.RecipientTokenAccount, true, false),
		solana.NewAccountMeta(p.Recipient, false, false),
		solana.NewAccountMeta(p.Schema, false, false),
		solana.NewAccountMeta(p.Credential, false, false),
		solana.NewAccountMeta(p.Attestation, false, false),
		solana.NewAccountMeta(p.SASProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(program, accounts, data), nil
}

// BurnParams holds the accounts and arguments for the order program's burn
// instruction. The burn debits the owner's asset token account under the
// program authority.
type BurnParams struct {
	Issuer            solana.PublicKey
	Config            solana.PublicKey
	Mint              solana.PublicKey
	ProgramAuthority  solana.PublicKey
	OwnerTokenAccount solana.PublicKey
	Schema            solana.PublicKey
	Credential        solana.PublicKey
	Attestation       solana.PublicKey
	SASProgram        solana.PublicKey
	Amount            uint64
}

// NewBurnInstruction builds the order program's burn instruction.
func NewBurnInstruction(program solana.PublicKey, p BurnParams) (solana.Instruction, error) {
	data, err := encodeAnchorArgs("burn", struct {
		Amount uint64
	}{p.Amount})
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Issuer, true, true),
		solana.NewAccountMeta(p.Config, false, false),
		solana.NewAccountMeta(p.Mint, true, false),
		solana.NewAccountMeta(p.ProgramAuthority, false, false),
		solana.NewAccountMeta(p.OwnerTokenAccount, true, false),
		solana.NewAccountMeta(p.Schema, false, false),
		solana.NewAccountMeta(p.Credential, false, false),
		solana.NewAccountMeta(p.Attestation, false, false),
		solana.NewAccountMeta(p.SASProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(program, accounts, data), nil
}

// NewCreateATAIdempotentInstruction builds the associated token program's
// CreateIdempotent instruction (variant 1). If the account already exists
// the instruction succeeds without effect, so it is safe to prepend to any
// transaction that needs the account.
func NewCreateATAIdempotentInstruction(
	payer, owner, mint solana.PublicKey,
) (solana.Instruction, error) {
	ata, err := DeriveAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		accounts,
		[]byte{1},
	), nil
}

// NewPayoutInstruction builds a TransferChecked that moves the stable asset
// from the issuer's token account to the recipient's. TransferChecked is
// used so the mint and decimals are validated on-chain.
func NewPayoutInstruction(
	amount uint64,
	decimals uint8,
	source, mint, destination, owner solana.PublicKey,
) solana.Instruction {
	return token.NewTransferCheckedInstruction(
		amount,
		decimals,
		source,
		mint,
		destination,
		owner,
		nil,
	).Build()
}

// encodeAnchorArgs borsh-encodes args behind the method's discriminator.
func encodeAnchorArgs(method string, args any) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, anchorDiscriminator(method)...)

	encoded, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s args: %w", method, err)
	}
	return append(buf, encoded...), nil
}
