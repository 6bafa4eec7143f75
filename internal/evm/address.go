// Package evm provides a minimal JSON-RPC client, address handling and
// legacy transaction signing for EVM chains such as Base.
package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLength is the length of an account address in bytes.
const AddressLength = 20

// ErrInvalidAddress is returned for strings that are not 0x-prefixed 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid evm address")

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// NormalizeAddress validates s and returns its lowercase 0x form.
// Mixed-case input must carry a valid EIP-55 checksum.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*AddressLength || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if ChecksumAddress("0x"+lower) != "0x"+body {
			return "", fmt.Errorf("%w: bad checksum", ErrInvalidAddress)
		}
	}
	return "0x" + lower, nil
}

// ParseAddress decodes a normalized address into bytes.
func ParseAddress(s string) ([AddressLength]byte, error) {
	var addr [AddressLength]byte
	norm, err := NormalizeAddress(s)
	if err != nil {
		return addr, err
	}
	raw, _ := hex.DecodeString(norm[2:])
	copy(addr[:], raw)
	return addr, nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a lowercase 0x address.
func ChecksumAddress(lower string) string {
	body := strings.ToLower(strings.TrimPrefix(lower, "0x"))
	hash := hex.EncodeToString(Keccak256([]byte(body)))

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
