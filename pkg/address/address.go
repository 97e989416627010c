// Package address classifies destination address strings by genuinely
// decoding them: base58check transparent addresses, and ZIP 316 unified
// addresses (bech32m + F4Jumble + typed receiver list). Classification
// never guesses from string prefixes.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcutil/base58"
)

// Kind is the closed classification result.
type Kind int

const (
	KindInvalid Kind = iota
	KindTransparent
	KindShieldedCapable
)

func (k Kind) String() string {
	switch k {
	case KindTransparent:
		return "transparent"
	case KindShieldedCapable:
		return "shielded-capable"
	default:
		return "invalid"
	}
}

// Classification carries the decoded receiver alongside the kind. A
// transparent result has Script set; a shielded-capable result has the
// raw Orchard receiver set (and may also carry a transparent fallback
// script if the unified address included one).
type Classification struct {
	Kind    Kind
	Script  []byte    // scriptPubKey for transparent receivers
	Orchard *[43]byte // raw Orchard receiver from a unified address
}

// Two-byte base58check version prefixes.
var (
	mainP2PKHPrefix = [2]byte{0x1C, 0xB8} // t1...
	mainP2SHPrefix  = [2]byte{0x1C, 0xBD} // t3...
	testP2PKHPrefix = [2]byte{0x1D, 0x25} // tm...
	testP2SHPrefix  = [2]byte{0x1C, 0xBA} // t2...
)

// Unified address typecodes (ZIP 316).
const (
	uaTypeP2PKH   = 0x00
	uaTypeP2SH    = 0x01
	uaTypeSapling = 0x02
	uaTypeOrchard = 0x03
)

// Classify decodes addr for the given network. Anything that does not
// decode to a known form, or decodes for the wrong network, is Invalid.
// A unified address must carry at least one Orchard receiver to be
// shielded-capable.
func Classify(addr string, mainnet bool) Classification {
	if script, ok := decodeTransparent(addr, mainnet); ok {
		return Classification{Kind: KindTransparent, Script: script}
	}
	if c, ok := decodeUnified(addr, mainnet); ok {
		return c
	}
	return Classification{Kind: KindInvalid}
}

// decodeTransparent decodes a base58check address with a two-byte version
// prefix and returns the corresponding scriptPubKey.
func decodeTransparent(addr string, mainnet bool) ([]byte, bool) {
	decoded := base58.Decode(addr)
	if len(decoded) != 26 { // 2 version || 20 hash || 4 checksum
		return nil, false
	}
	payload, checksum := decoded[:22], decoded[22:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(checksum, second[:4]) {
		return nil, false
	}

	var version [2]byte
	copy(version[:], payload[:2])
	var hash [20]byte
	copy(hash[:], payload[2:])

	switch {
	case mainnet && version == mainP2PKHPrefix, !mainnet && version == testP2PKHPrefix:
		return P2PKHScript(hash), true
	case mainnet && version == mainP2SHPrefix, !mainnet && version == testP2SHPrefix:
		return P2SHScript(hash), true
	default:
		return nil, false
	}
}

// decodeUnified decodes a ZIP 316 unified address and inspects its
// receiver list.
func decodeUnified(addr string, mainnet bool) (Classification, bool) {
	hrp, data, err := bech32mDecode(addr)
	if err != nil {
		return Classification{}, false
	}
	wantHrp := "utest"
	if mainnet {
		wantHrp = "u"
	}
	if hrp != wantHrp {
		return Classification{}, false
	}

	jumbled, err := convertBits(data, 5, 8, false)
	if err != nil {
		return Classification{}, false
	}
	raw, err := f4JumbleInv(jumbled)
	if err != nil {
		return Classification{}, false
	}

	// The message ends with the HRP zero-padded to 16 bytes.
	if len(raw) < 16 {
		return Classification{}, false
	}
	padding := make([]byte, 16)
	copy(padding, hrp)
	body := raw[:len(raw)-16]
	if !bytes.Equal(raw[len(raw)-16:], padding) {
		return Classification{}, false
	}

	c := Classification{Kind: KindInvalid}
	r := bytes.NewReader(body)
	for r.Len() > 0 {
		typecode, err := readCompactSize(r)
		if err != nil {
			return Classification{}, false
		}
		length, err := readCompactSize(r)
		if err != nil || length > uint64(r.Len()) {
			return Classification{}, false
		}
		value := make([]byte, length)
		r.Read(value)

		switch typecode {
		case uaTypeOrchard:
			if length != 43 {
				return Classification{}, false
			}
			var receiver [43]byte
			copy(receiver[:], value)
			c.Orchard = &receiver
			c.Kind = KindShieldedCapable
		case uaTypeP2PKH:
			if length != 20 {
				return Classification{}, false
			}
			var hash [20]byte
			copy(hash[:], value)
			c.Script = P2PKHScript(hash)
		case uaTypeP2SH:
			if length != 20 {
				return Classification{}, false
			}
			var hash [20]byte
			copy(hash[:], value)
			c.Script = P2SHScript(hash)
		case uaTypeSapling:
			if length != 43 {
				return Classification{}, false
			}
			// Sapling-only addresses are not spendable-to here; the
			// receiver is skipped and only Orchard grants capability.
		default:
			// Unknown typecodes must be tolerated for forward
			// compatibility.
		}
	}
	if c.Kind != KindShieldedCapable {
		return Classification{}, false
	}
	return c, true
}

// EncodeTransparent renders a 20-byte hash as a base58check transparent
// address.
func EncodeTransparent(hash [20]byte, p2sh, mainnet bool) string {
	var version [2]byte
	switch {
	case mainnet && p2sh:
		version = mainP2SHPrefix
	case mainnet:
		version = mainP2PKHPrefix
	case p2sh:
		version = testP2SHPrefix
	default:
		version = testP2PKHPrefix
	}
	payload := append(version[:], hash[:]...)
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(payload, second[:4]...))
}

// EncodeUnified renders an Orchard-only unified address.
func EncodeUnified(orchard [43]byte, mainnet bool) (string, error) {
	hrp := "utest"
	if mainnet {
		hrp = "u"
	}

	body := make([]byte, 0, 2+43+16)
	body = append(body, uaTypeOrchard, 43)
	body = append(body, orchard[:]...)
	padding := make([]byte, 16)
	copy(padding, hrp)
	body = append(body, padding...)

	jumbled, err := f4Jumble(body)
	if err != nil {
		return "", err
	}
	data, err := convertBits(jumbled, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32mEncode(hrp, data), nil
}

// P2PKHScript builds OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHScript(hash [20]byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, hash[:]...)
	script = append(script, 0x88, 0xac)
	return script
}

// P2SHScript builds OP_HASH160 <hash> OP_EQUAL.
func P2SHScript(hash [20]byte) []byte {
	script := make([]byte, 0, 23)
	script = append(script, 0xa9, 0x14)
	script = append(script, hash[:]...)
	script = append(script, 0x87)
	return script
}

func readCompactSize(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	default:
		return uint64(b), nil
	}
}
