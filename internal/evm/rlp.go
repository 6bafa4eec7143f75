package evm

import "math/big"

// rlpBytes encodes a byte string.
func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(rlpHeader(0x80, len(b)), b...)
}

// rlpUint encodes an unsigned integer as a minimal big-endian string.
func rlpUint(v uint64) []byte {
	return rlpBig(new(big.Int).SetUint64(v))
}

// rlpBig encodes a non-negative big integer. Zero encodes as the empty string.
func rlpBig(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return []byte{0x80}
	}
	return rlpBytes(v.Bytes())
}

// rlpList wraps already-encoded items in a list.
func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	return append(rlpHeader(0xc0, len(payload)), payload...)
}

func rlpHeader(offset byte, n int) []byte {
	if n < 56 {
		return []byte{offset + byte(n)}
	}
	var size []byte
	for v := n; v > 0; v >>= 8 {
		size = append([]byte{byte(v)}, size...)
	}
	return append([]byte{offset + 55 + byte(len(size))}, size...)
}
