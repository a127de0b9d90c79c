// Package validation implements the transport-level authentication
// collaborators of the sale engine: fixed-statement acknowledgment signatures
// and issuer-signed participation vouchers.
package validation

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Statement is the fixed, publicly known text a participant signs to
// acknowledge the sale terms. The signature binds the signing address to the
// acknowledgment; it carries no other meaning.
const Statement = "I acknowledge the sale terms and authorise my contribution."

// PersonalHash returns the Ethereum signed-message hash of msg:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func PersonalHash(msg []byte) common.Hash {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256Hash([]byte(prefixed))
}

// StatementVerifier checks acknowledgment signatures over one fixed
// statement. It implements the sale engine's AcknowledgmentVerifier port.
type StatementVerifier struct {
	hash common.Hash
}

// NewStatementVerifier returns a verifier for the given statement text;
// an empty statement selects the package default.
func NewStatementVerifier(statement string) *StatementVerifier {
	if statement == "" {
		statement = Statement
	}
	return &StatementVerifier{hash: PersonalHash([]byte(statement))}
}

// Hash returns the signed-message hash off-system signers must sign.
func (v *StatementVerifier) Hash() common.Hash {
	return v.hash
}

// Verify recovers the signer of sig over the statement hash and confirms it
// matches the claimed address. Accepts both 0/1 and 27/28 recovery ids.
func (v *StatementVerifier) Verify(who common.Address, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("acknowledgment: signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(v.hash.Bytes(), normalized)
	if err != nil {
		return fmt.Errorf("acknowledgment: recover signer: %w", err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != who {
		return fmt.Errorf("acknowledgment: signed by %s, not %s", signer.Hex(), who.Hex())
	}
	return nil
}

// SignStatement signs the statement hash with a secp256k1 key, producing a
// signature Verify accepts. Used by tests and off-system tooling.
func SignStatement(statement string, key *ecdsa.PrivateKey) ([]byte, error) {
	if statement == "" {
		statement = Statement
	}
	sig, err := crypto.Sign(PersonalHash([]byte(statement)).Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("acknowledgment: sign: %w", err)
	}
	return sig, nil
}
