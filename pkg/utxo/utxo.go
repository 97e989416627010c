// Package utxo defines the spendable transparent input and its binary
// interchange format. The format is owned by this package; hosts pass
// input sets across process boundaries as a single buffer.
//
// Wire layout: u16le count, then per input a 33-byte compressed pubkey,
// 32-byte txid, u32le vout, u64le amount, u16le script length, and the
// script bytes.
package utxo

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Input is one spendable transparent coin. Uniqueness of (TxID, Vout) is
// the caller's responsibility.
type Input struct {
	Pubkey       [33]byte
	TxID         [32]byte
	Vout         uint32
	Amount       uint64
	ScriptPubKey []byte
}

// CodecError reports a decode failure, naming the offending field.
type CodecError struct {
	Code  string
	Field string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("input codec error [%s]: %s", e.Code, e.Field)
}

const (
	// ErrTruncated means a field overran the buffer.
	ErrTruncated = "TRUNCATED"
	// ErrInvalidPublicKey means 33 bytes were present but are not a
	// valid compressed secp256k1 point.
	ErrInvalidPublicKey = "INVALID_PUBLIC_KEY"
)

// NewInput validates the pubkey and builds an Input.
func NewInput(pubkey []byte, txid [32]byte, vout uint32, amount uint64, scriptPubKey []byte) (Input, error) {
	if len(pubkey) != 33 {
		return Input{}, fmt.Errorf("pubkey must be 33 bytes, got %d", len(pubkey))
	}
	if _, err := btcec.ParsePubKey(pubkey); err != nil {
		return Input{}, fmt.Errorf("invalid compressed public key: %w", err)
	}
	in := Input{Vout: vout, Amount: amount, ScriptPubKey: scriptPubKey}
	copy(in.Pubkey[:], pubkey)
	in.TxID = txid
	return in, nil
}

// Serialize encodes inputs into the wire layout. Parse is the exact
// inverse; round-trips are byte-identical.
func Serialize(inputs []Input) ([]byte, error) {
	if len(inputs) > 0xFFFF {
		return nil, fmt.Errorf("too many inputs: %d", len(inputs))
	}

	size := 2
	for i := range inputs {
		if len(inputs[i].ScriptPubKey) > 0xFFFF {
			return nil, fmt.Errorf("input %d: script too long: %d", i, len(inputs[i].ScriptPubKey))
		}
		size += 33 + 32 + 4 + 8 + 2 + len(inputs[i].ScriptPubKey)
	}

	buf := make([]byte, 0, size)
	var scratch [8]byte
	binary.LittleEndian.PutUint16(scratch[:2], uint16(len(inputs)))
	buf = append(buf, scratch[:2]...)

	for i := range inputs {
		in := &inputs[i]
		buf = append(buf, in.Pubkey[:]...)
		buf = append(buf, in.TxID[:]...)
		binary.LittleEndian.PutUint32(scratch[:4], in.Vout)
		buf = append(buf, scratch[:4]...)
		binary.LittleEndian.PutUint64(scratch[:8], in.Amount)
		buf = append(buf, scratch[:8]...)
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(in.ScriptPubKey)))
		buf = append(buf, scratch[:2]...)
		buf = append(buf, in.ScriptPubKey...)
	}
	return buf, nil
}

// Parse decodes the wire layout back into inputs. An empty buffer decodes
// to an empty list without error. The first field to overrun the buffer
// fails Truncated; a syntactically present but invalid pubkey fails
// InvalidPublicKey.
func Parse(data []byte) ([]Input, error) {
	if len(data) == 0 {
		return []Input{}, nil
	}
	if len(data) < 2 {
		return nil, &CodecError{Code: ErrTruncated, Field: "input count"}
	}
	count := int(binary.LittleEndian.Uint16(data[:2]))
	off := 2

	inputs := make([]Input, 0, count)
	for i := 0; i < count; i++ {
		var in Input

		if off+33 > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d pubkey", i)}
		}
		if _, err := btcec.ParsePubKey(data[off : off+33]); err != nil {
			return nil, &CodecError{Code: ErrInvalidPublicKey, Field: fmt.Sprintf("input %d pubkey", i)}
		}
		copy(in.Pubkey[:], data[off:off+33])
		off += 33

		if off+32 > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d txid", i)}
		}
		copy(in.TxID[:], data[off:off+32])
		off += 32

		if off+4 > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d vout", i)}
		}
		in.Vout = binary.LittleEndian.Uint32(data[off : off+4])
		off += 4

		if off+8 > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d amount", i)}
		}
		in.Amount = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8

		if off+2 > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d script length", i)}
		}
		scriptLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2

		if off+scriptLen > len(data) {
			return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("input %d script", i)}
		}
		in.ScriptPubKey = make([]byte, scriptLen)
		copy(in.ScriptPubKey, data[off:off+scriptLen])
		off += scriptLen

		inputs = append(inputs, in)
	}
	if off != len(data) {
		return nil, &CodecError{Code: ErrTruncated, Field: fmt.Sprintf("%d trailing bytes", len(data)-off)}
	}
	return inputs, nil
}
