package prover

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/minio/blake2b-simd"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// DevEngine is a self-contained engine producing structurally valid
// bundles whose proofs and Pallas points are deterministic digests rather
// than real curve elements. It exists so the pipeline, serialization, and
// extraction paths can run without the external proving library; the
// output is NOT verifiable by consensus rules.
type DevEngine struct{}

var _ Engine = DevEngine{}

func (DevEngine) PrepareContext() error { return nil }

func devHash(person string, parts ...[]byte) [32]byte {
	var p [16]byte
	copy(p[:], person)
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: p[:]})
	if err != nil {
		panic(err)
	}
	for _, part := range parts {
		h.Write(part)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// devStream fills dst with a deterministic byte stream derived from seed.
func devStream(person string, seed []byte, dst []byte) {
	var ctr [4]byte
	for off := 0; off < len(dst); off += 32 {
		binary.LittleEndian.PutUint32(ctr[:], uint32(off/32))
		block := devHash(person, seed, ctr[:])
		copy(dst[off:], block[:])
	}
}

func (DevEngine) BuildAction(recipient [43]byte, value uint64, memo []byte) (pczt.OrchardAction, error) {
	var rseed, alpha, dummySk, rcv [32]byte
	for _, b := range []*[32]byte{&rseed, &alpha, &dummySk, &rcv} {
		if _, err := rand.Read(b[:]); err != nil {
			return pczt.OrchardAction{}, fmt.Errorf("randomness: %w", err)
		}
	}
	// The dummy spend is fully determined by its secret key so that the
	// spend authorization signature can be recomputed over any sighash.
	nullifier := devHash("DevOrchardNf", dummySk[:])
	rk := devHash("DevOrchardRk", dummySk[:], alpha[:])
	var valueLE [8]byte
	binary.LittleEndian.PutUint64(valueLE[:], value)
	cmx := devHash("DevOrchardCmx", recipient[:], valueLE[:], rseed[:], nullifier[:])
	cv := devHash("DevOrchardCv", valueLE[:], rcv[:])
	epk := devHash("DevOrchardEpk", rseed[:], recipient[:])

	var note [512]byte
	copy(note[:], memo)
	enc := make([]byte, 580)
	devStream("DevOrchardEnc", append(append([]byte{}, rseed[:]...), note[:]...), enc)
	out := make([]byte, 80)
	devStream("DevOrchardOut", rseed[:], out)

	recip := recipient
	rseedCopy := rseed
	rho := nullifier
	dsk := dummySk
	a := alpha
	r := rcv
	return pczt.OrchardAction{
		CvNet: cv,
		Spend: pczt.OrchardSpend{
			Nullifier: nullifier,
			Rk:        rk,
			// rho of a dummy spend equals its own nullifier.
			Rho:         &rho,
			Alpha:       &a,
			DummySk:     &dsk,
			Proprietary: map[string][]byte{},
		},
		Output: pczt.OrchardOutput{
			Cmx:           cmx,
			EphemeralKey:  epk,
			EncCiphertext: enc,
			OutCiphertext: out,
			Recipient:     &recip,
			Value:         &value,
			Rseed:         &rseedCopy,
			Proprietary:   map[string][]byte{},
		},
		Rcv: &r,
	}, nil
}

func (DevEngine) SignDummySpend(sk, alpha, sighash [32]byte) ([64]byte, error) {
	var sig [64]byte
	lo := devHash("DevSpendAuthLo", sk[:], alpha[:], sighash[:])
	hi := devHash("DevSpendAuthHi", sk[:], alpha[:], sighash[:])
	copy(sig[:32], lo[:])
	copy(sig[32:], hi[:])
	return sig, nil
}

func (DevEngine) AddScalars(a, b [32]byte) ([32]byte, error) {
	// Word-wise little-endian addition; a stand-in for Pallas scalar
	// addition with matching algebraic shape (commutative, zero identity).
	var out [32]byte
	var carry uint64
	for i := 0; i < 32; i += 8 {
		wa := binary.LittleEndian.Uint64(a[i : i+8])
		wb := binary.LittleEndian.Uint64(b[i : i+8])
		sum := wa + wb + carry
		if sum < wa || (carry == 1 && sum == wa) {
			carry = 1
		} else {
			carry = 0
		}
		binary.LittleEndian.PutUint64(out[i:i+8], sum)
	}
	return out, nil
}

func (DevEngine) Prove(actions []pczt.OrchardAction) ([]byte, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("no actions to prove")
	}
	seed := make([]byte, 0, len(actions)*64)
	for _, a := range actions {
		seed = append(seed, a.Output.Cmx[:]...)
		seed = append(seed, a.Spend.Nullifier[:]...)
	}
	proof := make([]byte, 2720)
	devStream("DevOrchardProof", seed, proof)
	return proof, nil
}

func (DevEngine) SignBinding(bsk, sighash [32]byte) ([64]byte, error) {
	var sig [64]byte
	lo := devHash("DevBindingLo", bsk[:], sighash[:])
	hi := devHash("DevBindingHi", bsk[:], sighash[:])
	copy(sig[:32], lo[:])
	copy(sig[32:], hi[:])
	return sig, nil
}
