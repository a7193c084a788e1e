package solana

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TransactionSigner adds its signature to a transaction without sending it.
type TransactionSigner interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// SignAndSender signs and submits in one call, the way browser wallets
// exposing signAndSendTransaction do.
type SignAndSender interface {
	PublicKey() solana.PublicKey
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// RawBroadcaster submits an already signed, serialized transaction.
type RawBroadcaster interface {
	SendRawTransaction(ctx context.Context, raw []byte) (solana.Signature, error)
}

type capabilityKind int

const (
	capabilityNone capabilityKind = iota
	capabilityCombined
	capabilitySplit
)

// Capability is what the wallet can do, resolved once per request.
// The zero value supports nothing.
type Capability struct {
	kind        capabilityKind
	combined    SignAndSender
	signer      TransactionSigner
	broadcaster RawBroadcaster
}

func Combined(w SignAndSender) Capability {
	return Capability{kind: capabilityCombined, combined: w}
}

func Split(s TransactionSigner, b RawBroadcaster) Capability {
	return Capability{kind: capabilitySplit, signer: s, broadcaster: b}
}

func (c Capability) IsCombined() bool {
	return c.kind == capabilityCombined
}

func (c Capability) IsSplit() bool {
	return c.kind == capabilitySplit
}

func (c Capability) Supported() bool {
	return c.kind != capabilityNone
}

// Owner is the wallet paying for and owning the new token.
func (c Capability) Owner() solana.PublicKey {
	switch c.kind {
	case capabilityCombined:
		return c.combined.PublicKey()
	case capabilitySplit:
		return c.signer.PublicKey()
	}
	return solana.PublicKey{}
}

func (c Capability) String() string {
	switch c.kind {
	case capabilityCombined:
		return "combined"
	case capabilitySplit:
		return "split"
	}
	return "none"
}

// ResolveCapability inspects wallet once. The combined shape wins when the
// wallet offers both.
func ResolveCapability(wallet interface{}, broadcaster RawBroadcaster) (Capability, error) {
	if w, ok := wallet.(SignAndSender); ok {
		return Combined(w), nil
	}
	if s, ok := wallet.(TransactionSigner); ok && broadcaster != nil {
		return Split(s, broadcaster), nil
	}
	return Capability{}, ErrUnsupportedWallet
}

// KeypairWallet signs with a locally held key.
type KeypairWallet struct {
	key solana.PrivateKey
}

func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

func KeypairWalletFromFile(solanaKeygenFile string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(solanaKeygenFile)
	if err != nil {
		return nil, fmt.Errorf("cannot create private key: %w", err)
	}
	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

func (w *KeypairWallet) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	return signWith(tx, w.key)
}

// PresignedWallet represents a remote wallet that already signed the
// transaction it hands back. Signing only checks that the work was done.
type PresignedWallet struct {
	Owner solana.PublicKey
}

func (w PresignedWallet) PublicKey() solana.PublicKey {
	return w.Owner
}

func (w PresignedWallet) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("cannot marshal message: %w", err)
	}
	signers := requiredSigners(tx)
	if len(tx.Signatures) != len(signers) {
		return fmt.Errorf("%w: expected %d signatures, got %d", ErrUserRejected, len(signers), len(tx.Signatures))
	}
	for i, signer := range signers {
		if !ed25519.Verify(ed25519.PublicKey(signer[:]), message, tx.Signatures[i][:]) {
			if signer.Equals(w.Owner) {
				return fmt.Errorf("%w: missing signature of %s", ErrUserRejected, signer)
			}
			return fmt.Errorf("invalid signature of %s", signer)
		}
	}
	return nil
}

func requiredSigners(tx *solana.Transaction) []solana.PublicKey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		n = len(tx.Message.AccountKeys)
	}
	return tx.Message.AccountKeys[:n]
}

// signWith fills in the signature slots of the given keys and keeps the
// signatures already present, so a transaction can be signed by the mint
// keypair first and by the wallet later.
func signWith(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("cannot marshal message: %w", err)
	}
	signers := requiredSigners(tx)
	if len(tx.Signatures) != len(signers) {
		signatures := make([]solana.Signature, len(signers))
		copy(signatures, tx.Signatures)
		tx.Signatures = signatures
	}
	for _, key := range keys {
		index := -1
		for i, signer := range signers {
			if signer.Equals(key.PublicKey()) {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%s is not a signer of the transaction", key.PublicKey())
		}
		sig, err := key.Sign(message)
		if err != nil {
			return fmt.Errorf("cannot sign: %w", err)
		}
		tx.Signatures[index] = sig
	}
	return nil
}
