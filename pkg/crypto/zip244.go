// Package crypto provides the signature-hash procedure (ZIP 244) and the
// secp256k1 key and signature primitives the transparent side of the
// pipeline relies on.
//
// ZIP 244 builds the v5 signature hash from a tree of personalized
// BLAKE2b-256 digests: header, transparent, sapling and orchard, with a
// per-input leg on the transparent side. The transaction id uses the same
// tree with the effecting data only.
package crypto

import (
	"bytes"
	"encoding/binary"
	"hash"
	"io"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// blake2bNew256 creates a BLAKE2b-256 with the given 16-byte
// personalization. The personalization is a domain separator, not a key.
func blake2bNew256(personalization []byte) (hash.Hash, error) {
	return blake2b.New(&blake2b.Config{Size: 32, Person: personalization})
}

// BLAKE2b personalization strings. The txid/sighash root appends the
// little-endian consensus branch id to its 12-byte prefix.
const (
	Zip244HashPersonalization = "ZcashTxHash_"

	HeaderDigestPersonalization      = "ZTxIdHeadersHash"
	TransparentDigestPersonalization = "ZTxIdTranspaHash"
	SaplingDigestPersonalization     = "ZTxIdSaplingHash"
	OrchardDigestPersonalization     = "ZTxIdOrchardHash"

	PrevoutDigestPersonalization  = "ZTxIdPrevoutHash"
	SequenceDigestPersonalization = "ZTxIdSequencHash"
	OutputsDigestPersonalization  = "ZTxIdOutputsHash"

	AmountsDigestPersonalization = "ZTxTrAmountsHash"
	ScriptsDigestPersonalization = "ZTxTrScriptsHash"
	TxInDigestPersonalization    = "Zcash___TxInHash"

	OrchardActionsCompactPersonalization    = "ZTxIdOrcActCHash"
	OrchardActionsMemosPersonalization      = "ZTxIdOrcActMHash"
	OrchardActionsNoncompactPersonalization = "ZTxIdOrcActNHash"
)

// TxDigests holds the four top-level component digests.
type TxDigests struct {
	HeaderDigest      [32]byte
	TransparentDigest [32]byte
	SaplingDigest     [32]byte
	OrchardDigest     [32]byte
}

// ComputeTxDigests computes all component digests for a PCZT.
func ComputeTxDigests(p *pczt.PCZT) (*TxDigests, error) {
	digests := &TxDigests{}

	var err error
	digests.HeaderDigest, err = computeHeaderDigest(p)
	if err != nil {
		return nil, err
	}
	digests.TransparentDigest, err = computeTransparentDigest(p)
	if err != nil {
		return nil, err
	}
	digests.SaplingDigest = emptySaplingDigest()
	digests.OrchardDigest, err = computeOrchardDigest(p)
	if err != nil {
		return nil, err
	}
	return digests, nil
}

// TxID computes the ZIP 244 transaction id for a fully formed PCZT.
func TxID(p *pczt.PCZT) ([32]byte, error) {
	digests, err := ComputeTxDigests(p)
	if err != nil {
		return [32]byte{}, err
	}

	personalization := make([]byte, 16)
	copy(personalization, Zip244HashPersonalization)
	binary.LittleEndian.PutUint32(personalization[12:], p.Global.ConsensusBranchID)

	h, err := blake2bNew256(personalization)
	if err != nil {
		return [32]byte{}, err
	}
	h.Write(digests.HeaderDigest[:])
	h.Write(digests.TransparentDigest[:])
	h.Write(digests.SaplingDigest[:])
	h.Write(digests.OrchardDigest[:])

	var txid [32]byte
	copy(txid[:], h.Sum(nil))
	return txid, nil
}

// T.1: header_digest over version, group id, branch id, lock time, expiry.
func computeHeaderDigest(p *pczt.PCZT) ([32]byte, error) {
	h, _ := blake2bNew256([]byte(HeaderDigestPersonalization))

	buf := new(bytes.Buffer)
	version := p.Global.TxVersion | (1 << 31) // overwintered bit
	binary.Write(buf, binary.LittleEndian, version)
	binary.Write(buf, binary.LittleEndian, p.Global.VersionGroupID)
	binary.Write(buf, binary.LittleEndian, p.Global.ConsensusBranchID)

	lockTime := uint32(0)
	if p.Global.FallbackLockTime != nil {
		lockTime = *p.Global.FallbackLockTime
	}
	binary.Write(buf, binary.LittleEndian, lockTime)
	binary.Write(buf, binary.LittleEndian, p.Global.ExpiryHeight)

	h.Write(buf.Bytes())

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// T.2: transparent_digest over prevouts, sequences and outputs digests.
// An entirely transparent-free transaction hashes to the bare
// personalized state.
func computeTransparentDigest(p *pczt.PCZT) ([32]byte, error) {
	h, _ := blake2bNew256([]byte(TransparentDigestPersonalization))

	if len(p.Transparent.Inputs) == 0 && len(p.Transparent.Outputs) == 0 {
		var digest [32]byte
		copy(digest[:], h.Sum(nil))
		return digest, nil
	}

	prevoutsDigest := computePrevoutsDigest(p.Transparent.Inputs)
	sequenceDigest := computeSequenceDigest(p.Transparent.Inputs)
	outputsDigest := computeOutputsDigest(p.Transparent.Outputs)

	h.Write(prevoutsDigest[:])
	h.Write(sequenceDigest[:])
	h.Write(outputsDigest[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

func computePrevoutsDigest(inputs []pczt.TransparentInput) [32]byte {
	h, _ := blake2bNew256([]byte(PrevoutDigestPersonalization))
	for _, input := range inputs {
		h.Write(input.PrevoutTxID[:])
		binary.Write(h, binary.LittleEndian, input.PrevoutIndex)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeSequenceDigest(inputs []pczt.TransparentInput) [32]byte {
	h, _ := blake2bNew256([]byte(SequenceDigestPersonalization))
	for _, input := range inputs {
		binary.Write(h, binary.LittleEndian, sequenceOf(&input))
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeOutputsDigest(outputs []pczt.TransparentOutput) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsDigestPersonalization))
	for _, output := range outputs {
		binary.Write(h, binary.LittleEndian, output.Value)
		writeCompactSize(h, uint64(len(output.ScriptPubKey)))
		h.Write(output.ScriptPubKey)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// T.3: the Sapling bundle is always empty here, so its digest is the
// bare personalized state.
func emptySaplingDigest() [32]byte {
	h, _ := blake2bNew256([]byte(SaplingDigestPersonalization))
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// T.4: orchard_digest over compact, memo and noncompact action legs plus
// flags, value balance and anchor.
func computeOrchardDigest(p *pczt.PCZT) ([32]byte, error) {
	h, _ := blake2bNew256([]byte(OrchardDigestPersonalization))

	if len(p.Orchard.Actions) == 0 {
		var digest [32]byte
		copy(digest[:], h.Sum(nil))
		return digest, nil
	}

	compactDigest := computeOrchardActionsCompactDigest(p.Orchard.Actions)
	h.Write(compactDigest[:])
	memosDigest := computeOrchardActionsMemosDigest(p.Orchard.Actions)
	h.Write(memosDigest[:])
	noncompactDigest := computeOrchardActionsNoncompactDigest(p.Orchard.Actions)
	h.Write(noncompactDigest[:])

	h.Write([]byte{p.Orchard.Flags})

	var valueBalance int64
	if p.Orchard.ValueSum.IsNegative {
		valueBalance = -int64(p.Orchard.ValueSum.Magnitude)
	} else {
		valueBalance = int64(p.Orchard.ValueSum.Magnitude)
	}
	binary.Write(h, binary.LittleEndian, valueBalance)

	h.Write(p.Orchard.Anchor[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

func computeOrchardActionsCompactDigest(actions []pczt.OrchardAction) [32]byte {
	h, _ := blake2bNew256([]byte(OrchardActionsCompactPersonalization))
	for _, action := range actions {
		h.Write(action.Spend.Nullifier[:])
		h.Write(action.Output.Cmx[:])
		h.Write(action.Output.EphemeralKey[:])
		if len(action.Output.EncCiphertext) >= 52 {
			h.Write(action.Output.EncCiphertext[:52])
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeOrchardActionsMemosDigest(actions []pczt.OrchardAction) [32]byte {
	h, _ := blake2bNew256([]byte(OrchardActionsMemosPersonalization))
	for _, action := range actions {
		if len(action.Output.EncCiphertext) >= 564 {
			h.Write(action.Output.EncCiphertext[52:564])
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeOrchardActionsNoncompactDigest(actions []pczt.OrchardAction) [32]byte {
	h, _ := blake2bNew256([]byte(OrchardActionsNoncompactPersonalization))
	for _, action := range actions {
		h.Write(action.CvNet[:])
		h.Write(action.Spend.Rk[:])
		if len(action.Output.EncCiphertext) > 564 {
			h.Write(action.Output.EncCiphertext[564:])
		}
		h.Write(action.Output.OutCiphertext)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// GetSignatureHash computes the ZIP 244 signature hash for one
// transparent input. Deterministic and side-effect free.
func GetSignatureHash(p *pczt.PCZT, inputIndex uint32, sighashType uint8) ([32]byte, error) {
	if int(inputIndex) >= len(p.Transparent.Inputs) {
		return [32]byte{}, &pczt.SighashError{
			InputIndex: inputIndex,
			Message:    "input index out of bounds",
		}
	}

	digests, err := ComputeTxDigests(p)
	if err != nil {
		return [32]byte{}, err
	}
	return computeTransparentSighash(p, digests, inputIndex, sighashType)
}

func computeTransparentSighash(p *pczt.PCZT, digests *TxDigests, inputIndex uint32, sighashType uint8) ([32]byte, error) {
	personalization := make([]byte, 16)
	copy(personalization, Zip244HashPersonalization)
	binary.LittleEndian.PutUint32(personalization[12:], p.Global.ConsensusBranchID)

	h, _ := blake2bNew256(personalization)

	h.Write(digests.HeaderDigest[:])
	transparentSigDigest := computeTransparentSigDigest(p, inputIndex, sighashType)
	h.Write(transparentSigDigest[:])
	h.Write(digests.SaplingDigest[:])
	h.Write(digests.OrchardDigest[:])

	var sighash [32]byte
	copy(sighash[:], h.Sum(nil))
	return sighash, nil
}

// S.2: hash_type || prevouts || amounts || scriptpubkeys || sequences ||
// outputs || txin, with the ANYONECANPAY and output-mask rules applied.
func computeTransparentSigDigest(p *pczt.PCZT, inputIndex uint32, sighashType uint8) [32]byte {
	h, _ := blake2bNew256([]byte(TransparentDigestPersonalization))

	input := &p.Transparent.Inputs[inputIndex]
	anyoneCanPay := (sighashType & pczt.SighashAnyoneCanPay) != 0
	sigHashMask := sighashType & 0x1f

	h.Write([]byte{sighashType})

	prevoutsDigest := computePrevoutsSigDigest(p.Transparent.Inputs, anyoneCanPay)
	h.Write(prevoutsDigest[:])
	amountsDigest := computeAmountsSigDigest(p.Transparent.Inputs, anyoneCanPay)
	h.Write(amountsDigest[:])
	scriptsDigest := computeScriptsSigDigest(p.Transparent.Inputs, anyoneCanPay)
	h.Write(scriptsDigest[:])
	sequenceDigest := computeSequenceSigDigest(p.Transparent.Inputs, anyoneCanPay)
	h.Write(sequenceDigest[:])
	outputsDigest := computeOutputsSigDigest(p.Transparent.Outputs, sigHashMask, inputIndex)
	h.Write(outputsDigest[:])
	txinDigest := computeTxInSigDigest(input)
	h.Write(txinDigest[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computePrevoutsSigDigest(inputs []pczt.TransparentInput, anyoneCanPay bool) [32]byte {
	h, _ := blake2bNew256([]byte(PrevoutDigestPersonalization))
	if !anyoneCanPay {
		for _, input := range inputs {
			h.Write(input.PrevoutTxID[:])
			binary.Write(h, binary.LittleEndian, input.PrevoutIndex)
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeAmountsSigDigest(inputs []pczt.TransparentInput, anyoneCanPay bool) [32]byte {
	h, _ := blake2bNew256([]byte(AmountsDigestPersonalization))
	if !anyoneCanPay {
		for _, input := range inputs {
			binary.Write(h, binary.LittleEndian, input.Value)
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeScriptsSigDigest(inputs []pczt.TransparentInput, anyoneCanPay bool) [32]byte {
	h, _ := blake2bNew256([]byte(ScriptsDigestPersonalization))
	if !anyoneCanPay {
		for _, input := range inputs {
			writeCompactSize(h, uint64(len(input.ScriptPubKey)))
			h.Write(input.ScriptPubKey)
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeSequenceSigDigest(inputs []pczt.TransparentInput, anyoneCanPay bool) [32]byte {
	h, _ := blake2bNew256([]byte(SequenceDigestPersonalization))
	if !anyoneCanPay {
		for _, input := range inputs {
			binary.Write(h, binary.LittleEndian, sequenceOf(&input))
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeOutputsSigDigest(outputs []pczt.TransparentOutput, sigHashMask uint8, inputIndex uint32) [32]byte {
	h, _ := blake2bNew256([]byte(OutputsDigestPersonalization))

	switch sigHashMask {
	case pczt.SighashAll:
		for _, output := range outputs {
			binary.Write(h, binary.LittleEndian, output.Value)
			writeCompactSize(h, uint64(len(output.ScriptPubKey)))
			h.Write(output.ScriptPubKey)
		}
	case pczt.SighashSingle:
		if int(inputIndex) < len(outputs) {
			output := outputs[inputIndex]
			binary.Write(h, binary.LittleEndian, output.Value)
			writeCompactSize(h, uint64(len(output.ScriptPubKey)))
			h.Write(output.ScriptPubKey)
		}
	case pczt.SighashNone:
		// no outputs signed
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func computeTxInSigDigest(input *pczt.TransparentInput) [32]byte {
	h, _ := blake2bNew256([]byte(TxInDigestPersonalization))

	h.Write(input.PrevoutTxID[:])
	binary.Write(h, binary.LittleEndian, input.PrevoutIndex)
	binary.Write(h, binary.LittleEndian, input.Value)
	writeCompactSize(h, uint64(len(input.ScriptPubKey)))
	h.Write(input.ScriptPubKey)
	binary.Write(h, binary.LittleEndian, sequenceOf(input))

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func sequenceOf(input *pczt.TransparentInput) uint32 {
	if input.Sequence != nil {
		return *input.Sequence
	}
	return 0xFFFFFFFF
}

// writeCompactSize writes a Bitcoin-style varint.
func writeCompactSize(w io.Writer, n uint64) {
	switch {
	case n < 253:
		w.Write([]byte{byte(n)})
	case n <= 0xFFFF:
		w.Write([]byte{253})
		binary.Write(w, binary.LittleEndian, uint16(n))
	case n <= 0xFFFFFFFF:
		w.Write([]byte{254})
		binary.Write(w, binary.LittleEndian, uint32(n))
	default:
		w.Write([]byte{255})
		binary.Write(w, binary.LittleEndian, n)
	}
}
