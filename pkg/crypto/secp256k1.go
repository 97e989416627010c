package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

// Transparent inputs carry Bitcoin-style secp256k1 ECDSA signatures.
// Keys move around as WIF strings or raw 32-byte scalars, public keys in
// 33-byte compressed form, and signatures either DER-encoded (inside
// scriptSig) or as the 64-byte compact r||s form callers hand across the
// boundary.

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// ParsePrivateKeyWIF parses a WIF-encoded private key.
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	decoded, err := decodeWIF(wif)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(decoded)}, nil
}

// PrivateKeyFromBytes creates a private key from a raw 32-byte scalar.
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(keyBytes)}, nil
}

// Sign creates a DER-encoded ECDSA signature over hash.
func (pk *PrivateKey) Sign(hash [32]byte) ([]byte, error) {
	sig := ecdsa.Sign(pk.key, hash[:])
	return sig.Serialize(), nil
}

// SignCompact creates a 64-byte r||s signature over hash.
func (pk *PrivateKey) SignCompact(hash [32]byte) [64]byte {
	sig := ecdsa.Sign(pk.key, hash[:])
	r, s := sig.R(), sig.S()

	var out [64]byte
	var r32, s32 [32]byte
	r.PutBytes(&r32)
	s.PutBytes(&s32)
	copy(out[:32], r32[:])
	copy(out[32:], s32[:])
	return out
}

// PublicKey derives the public key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Bytes returns the raw 32-byte private key.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// SerializeCompressed returns the 33-byte compressed public key.
func (pub *PublicKey) SerializeCompressed() [33]byte {
	var result [33]byte
	copy(result[:], pub.key.SerializeCompressed())
	return result
}

// Bytes returns the compressed public key bytes.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// ParsePublicKey parses a compressed public key.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) != 33 {
		return nil, fmt.Errorf("compressed public key must be 33 bytes, got %d", len(pubKeyBytes))
	}
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &PublicKey{key: pubKey}, nil
}

// VerifySignature verifies a DER-encoded ECDSA signature.
func VerifySignature(pubkey *PublicKey, hash [32]byte, signature []byte) bool {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash[:], pubkey.key)
}

// ParseCompactSignature decodes a 64-byte r||s signature. Components at
// or above the group order are rejected.
func ParseCompactSignature(sig [64]byte) (*ecdsa.Signature, error) {
	var r, s secp256k1.ModNScalar
	var r32, s32 [32]byte
	copy(r32[:], sig[:32])
	copy(s32[:], sig[32:])
	if r.SetBytes(&r32) != 0 {
		return nil, errors.New("signature r overflows the group order")
	}
	if s.SetBytes(&s32) != 0 {
		return nil, errors.New("signature s overflows the group order")
	}
	if r.IsZero() || s.IsZero() {
		return nil, errors.New("signature component is zero")
	}
	return ecdsa.NewSignature(&r, &s), nil
}

// VerifyCompact verifies a 64-byte compact signature against hash.
func VerifyCompact(pubkey *PublicKey, hash [32]byte, sig [64]byte) bool {
	parsed, err := ParseCompactSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], pubkey.key)
}

// Hash160 is SHA-256 followed by RIPEMD-160, the transparent address
// hash.
func Hash160(data []byte) [20]byte {
	sha := sha256.Sum256(data)
	rip := ripemd160.New()
	rip.Write(sha[:])
	var out [20]byte
	copy(out[:], rip.Sum(nil))
	return out
}

// decodeWIF decodes a WIF private key:
// version || key (32 bytes) || [0x01 if compressed] || checksum (4 bytes).
func decodeWIF(wif string) ([]byte, error) {
	decoded := base58.Decode(wif)
	if len(decoded) != 37 && len(decoded) != 38 {
		return nil, errors.New("invalid WIF length")
	}

	version := decoded[0]
	if version != 0x80 && version != 0xef {
		return nil, fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}

	checksumOffset := len(decoded) - 4
	providedChecksum := decoded[checksumOffset:]
	payload := decoded[:checksumOffset]

	hash1 := sha256.Sum256(payload)
	hash2 := sha256.Sum256(hash1[:])
	for i := 0; i < 4; i++ {
		if providedChecksum[i] != hash2[i] {
			return nil, errors.New("WIF checksum mismatch")
		}
	}
	return payload[1:33], nil
}

// EncodeWIF encodes a raw private key to WIF.
func EncodeWIF(privateKey []byte, compressed bool, testnet bool) (string, error) {
	if len(privateKey) != 32 {
		return "", errors.New("private key must be 32 bytes")
	}

	version := byte(0x80)
	if testnet {
		version = 0xef
	}

	payload := append([]byte{version}, privateKey...)
	if compressed {
		payload = append(payload, 0x01)
	}

	hash1 := sha256.Sum256(payload)
	hash2 := sha256.Sum256(hash1[:])
	payload = append(payload, hash2[:4]...)
	return base58.Encode(payload), nil
}
