package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of a Solana account address in bytes.
const PublicKeySize = 32

// SystemProgramID is the address of the native system program.
const SystemProgramID = "11111111111111111111111111111111"

// ErrInvalidAddress is returned for strings that are not valid wallet addresses.
var ErrInvalidAddress = errors.New("invalid solana address")

// PublicKey is a Solana account address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 encoding of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// OnCurve reports whether the key is a valid ed25519 point.
// Program derived addresses are off curve and cannot sign.
func (pk PublicKey) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// ValidateWalletAddress checks that s is a base58 ed25519 public key.
func ValidateWalletAddress(s string) error {
	pk, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	if !pk.OnCurve() {
		return fmt.Errorf("%w: not an ed25519 point", ErrInvalidAddress)
	}
	return nil
}

// ParseKeypair decodes a signing key from either a solana-keygen JSON byte
// array or a base58 string. Both forms hold the 64-byte seed||public key.
func ParseKeypair(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	var raw []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("parse keypair json: %w", err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("parse keypair json: byte %d out of range", i)
			}
			raw[i] = byte(v)
		}
	} else {
		var err error
		if raw, err = base58.Decode(s); err != nil {
			return nil, fmt.Errorf("parse keypair base58: %w", err)
		}
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair length %d, want %d", len(raw), ed25519.PrivateKeySize)
	}

	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !key.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, errors.New("keypair public key does not match seed")
	}
	return key, nil
}
