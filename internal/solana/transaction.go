package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
)

// systemTransferIndex is the system program instruction index of Transfer.
const systemTransferIndex = 2

// TransferMessage builds a legacy message moving lamports from one account to another.
func TransferMessage(from, to PublicKey, lamports uint64, recentBlockhash string) ([]byte, error) {
	if from == to {
		return nil, errors.New("transfer source and destination are the same account")
	}
	system, err := ParsePublicKey(SystemProgramID)
	if err != nil {
		return nil, err
	}
	blockhash, err := ParsePublicKey(recentBlockhash)
	if err != nil {
		return nil, errors.New("invalid recent blockhash")
	}

	var buf bytes.Buffer

	// Header: 1 signer (from), 0 readonly signed, 1 readonly unsigned (system program)
	buf.Write([]byte{1, 0, 1})

	writeCompactU16(&buf, 3)
	buf.Write(from[:])
	buf.Write(to[:])
	buf.Write(system[:])

	buf.Write(blockhash[:])

	// Single instruction
	writeCompactU16(&buf, 1)
	buf.WriteByte(2) // program id index
	writeCompactU16(&buf, 2)
	buf.Write([]byte{0, 1})

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	writeCompactU16(&buf, len(data))
	buf.Write(data)

	return buf.Bytes(), nil
}

// SignTransaction signs message with key and returns the wire transaction
// along with its base58 signature.
func SignTransaction(message []byte, key ed25519.PrivateKey) ([]byte, string) {
	sig := ed25519.Sign(key, message)

	var buf bytes.Buffer
	writeCompactU16(&buf, 1)
	buf.Write(sig)
	buf.Write(message)
	return buf.Bytes(), base58.Encode(sig)
}

// writeCompactU16 writes n in Solana's shortvec encoding.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
