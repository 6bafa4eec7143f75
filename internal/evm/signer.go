package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// LegacyTx is a pre-EIP-2718 transaction carrying a plain value transfer.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       [AddressLength]byte
	Value    *big.Int
}

// ParsePrivateKey decodes a hex private key with optional 0x prefix.
func ParsePrivateKey(s string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key length %d, want 32", len(raw))
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	if key.Key.IsZero() {
		return nil, errors.New("private key is zero")
	}
	return key, nil
}

// AddressOf returns the lowercase 0x address controlled by key.
func AddressOf(key *secp256k1.PrivateKey) string {
	return PubKeyAddress(key.PubKey())
}

// PubKeyAddress returns the lowercase 0x address of a public key.
func PubKeyAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	return "0x" + hex.EncodeToString(Keccak256(uncompressed[1:])[12:])
}

// signingPayload is the EIP-155 RLP payload whose hash is signed.
func signingPayload(tx *LegacyTx, chainID *big.Int) []byte {
	return rlpList(
		rlpUint(tx.Nonce),
		rlpBig(tx.GasPrice),
		rlpUint(tx.Gas),
		rlpBytes(tx.To[:]),
		rlpBig(tx.Value),
		rlpBytes(nil),
		rlpBig(chainID),
		rlpBig(nil),
		rlpBig(nil),
	)
}

// SignLegacyTx signs tx with EIP-155 replay protection and returns the raw
// transaction along with its 0x hash.
func SignLegacyTx(tx *LegacyTx, chainID *big.Int, key *secp256k1.PrivateKey) ([]byte, string) {
	hash := Keccak256(signingPayload(tx, chainID))

	// Compact signature layout: [27+recid][r 32][s 32]
	sig := ecdsa.SignCompact(key, hash, false)
	recID := int64(sig[0] - 27)

	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35+recID))

	raw := rlpList(
		rlpUint(tx.Nonce),
		rlpBig(tx.GasPrice),
		rlpUint(tx.Gas),
		rlpBytes(tx.To[:]),
		rlpBig(tx.Value),
		rlpBytes(nil),
		rlpBig(v),
		rlpBig(new(big.Int).SetBytes(sig[1:33])),
		rlpBig(new(big.Int).SetBytes(sig[33:65])),
	)
	return raw, "0x" + hex.EncodeToString(Keccak256(raw))
}
