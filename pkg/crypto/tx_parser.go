package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// ParsedV5Tx is a decoded v5 transaction, the inverse of what the
// extractor emits. Used to validate extraction output and to compute
// txids over raw bytes.
type ParsedV5Tx struct {
	Version           uint32
	VersionGroupID    uint32
	ConsensusBranchID uint32
	LockTime          uint32
	ExpiryHeight      uint32

	Inputs  []ParsedTxIn
	Outputs []ParsedTxOut

	OrchardActions    []ParsedOrchardAction
	OrchardFlags      uint8
	OrchardValue      int64
	OrchardAnchor     [32]byte
	OrchardProof      []byte
	OrchardSpendSigs  [][64]byte
	OrchardBindingSig *[64]byte
}

// ParsedTxIn is a decoded transparent input.
type ParsedTxIn struct {
	PrevoutTxID  [32]byte
	PrevoutIndex uint32
	ScriptSig    []byte
	Sequence     uint32
}

// ParsedTxOut is a decoded transparent output.
type ParsedTxOut struct {
	Value  uint64
	Script []byte
}

// ParsedOrchardAction is the wire form of one action.
type ParsedOrchardAction struct {
	Cv            [32]byte
	Nullifier     [32]byte
	Rk            [32]byte
	Cmx           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [580]byte
	OutCiphertext [80]byte
}

// ParseV5Transaction decodes the ZIP 225 v5 wire format. The Sapling
// bundle must be empty; this codec covers only the transaction shapes
// the pipeline produces.
func ParseV5Transaction(data []byte) (*ParsedV5Tx, error) {
	r := bytes.NewReader(data)
	tx := &ParsedV5Tx{}

	header := make([]uint32, 5)
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
	}
	if header[0]&(1<<31) == 0 {
		return nil, fmt.Errorf("overwinter bit not set")
	}
	tx.Version = header[0] &^ (1 << 31)
	tx.VersionGroupID = header[1]
	tx.ConsensusBranchID = header[2]
	tx.LockTime = header[3]
	tx.ExpiryHeight = header[4]
	if tx.Version != pczt.V5TxVersion {
		return nil, fmt.Errorf("unsupported version %d", tx.Version)
	}

	if err := parseTransparentBundle(r, tx); err != nil {
		return nil, err
	}
	if err := parseSaplingBundle(r); err != nil {
		return nil, err
	}
	if err := parseOrchardBundle(r, tx); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return tx, nil
}

func parseTransparentBundle(r *bytes.Reader, tx *ParsedV5Tx) error {
	nIn, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("input count: %w", err)
	}
	for i := uint64(0); i < nIn; i++ {
		var txin ParsedTxIn
		if _, err := io.ReadFull(r, txin.PrevoutTxID[:]); err != nil {
			return fmt.Errorf("input %d prevout: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &txin.PrevoutIndex); err != nil {
			return fmt.Errorf("input %d prevout index: %w", i, err)
		}
		scriptLen, err := readCompactSize(r)
		if err != nil {
			return fmt.Errorf("input %d scriptSig length: %w", i, err)
		}
		txin.ScriptSig = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, txin.ScriptSig); err != nil {
			return fmt.Errorf("input %d scriptSig: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &txin.Sequence); err != nil {
			return fmt.Errorf("input %d sequence: %w", i, err)
		}
		tx.Inputs = append(tx.Inputs, txin)
	}

	nOut, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("output count: %w", err)
	}
	for i := uint64(0); i < nOut; i++ {
		var txout ParsedTxOut
		if err := binary.Read(r, binary.LittleEndian, &txout.Value); err != nil {
			return fmt.Errorf("output %d value: %w", i, err)
		}
		scriptLen, err := readCompactSize(r)
		if err != nil {
			return fmt.Errorf("output %d script length: %w", i, err)
		}
		txout.Script = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, txout.Script); err != nil {
			return fmt.Errorf("output %d script: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, txout)
	}
	return nil
}

func parseSaplingBundle(r *bytes.Reader) error {
	nSpends, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("sapling spend count: %w", err)
	}
	nOutputs, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("sapling output count: %w", err)
	}
	if nSpends != 0 || nOutputs != 0 {
		return fmt.Errorf("sapling bundle not supported")
	}
	return nil
}

func parseOrchardBundle(r *bytes.Reader, tx *ParsedV5Tx) error {
	nActions, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("action count: %w", err)
	}
	if nActions == 0 {
		return nil
	}

	for i := uint64(0); i < nActions; i++ {
		var a ParsedOrchardAction
		for _, field := range [][]byte{
			a.Cv[:], a.Nullifier[:], a.Rk[:], a.Cmx[:],
			a.EphemeralKey[:], a.EncCiphertext[:], a.OutCiphertext[:],
		} {
			if _, err := io.ReadFull(r, field); err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
		}
		tx.OrchardActions = append(tx.OrchardActions, a)
	}

	flags, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("orchard flags: %w", err)
	}
	tx.OrchardFlags = flags

	if err := binary.Read(r, binary.LittleEndian, &tx.OrchardValue); err != nil {
		return fmt.Errorf("orchard value balance: %w", err)
	}
	if _, err := io.ReadFull(r, tx.OrchardAnchor[:]); err != nil {
		return fmt.Errorf("orchard anchor: %w", err)
	}

	proofLen, err := readCompactSize(r)
	if err != nil {
		return fmt.Errorf("proof length: %w", err)
	}
	tx.OrchardProof = make([]byte, proofLen)
	if _, err := io.ReadFull(r, tx.OrchardProof); err != nil {
		return fmt.Errorf("proof: %w", err)
	}

	for i := uint64(0); i < nActions; i++ {
		var sig [64]byte
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return fmt.Errorf("spend auth sig %d: %w", i, err)
		}
		tx.OrchardSpendSigs = append(tx.OrchardSpendSigs, sig)
	}

	var binding [64]byte
	if _, err := io.ReadFull(r, binding[:]); err != nil {
		return fmt.Errorf("binding sig: %w", err)
	}
	tx.OrchardBindingSig = &binding
	return nil
}

// TxID computes the ZIP 244 transaction id of a parsed transaction. The
// digest tree covers only effecting data, so the parsed form carries
// everything needed.
func (tx *ParsedV5Tx) TxID() [32]byte {
	p := tx.toDigestInput()
	id, _ := TxID(p)
	return id
}

// toDigestInput reshapes the parsed transaction into the digest tree's
// input form. Amounts and scriptPubKeys are absent from the wire format
// and are not part of the txid.
func (tx *ParsedV5Tx) toDigestInput() *pczt.PCZT {
	p := &pczt.PCZT{
		Global: pczt.Global{
			TxVersion:         tx.Version,
			VersionGroupID:    tx.VersionGroupID,
			ConsensusBranchID: tx.ConsensusBranchID,
			ExpiryHeight:      tx.ExpiryHeight,
		},
	}
	if tx.LockTime != 0 {
		lockTime := tx.LockTime
		p.Global.FallbackLockTime = &lockTime
	}
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		seq := in.Sequence
		p.Transparent.Inputs = append(p.Transparent.Inputs, pczt.TransparentInput{
			PrevoutTxID:  in.PrevoutTxID,
			PrevoutIndex: in.PrevoutIndex,
			Sequence:     &seq,
		})
	}
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		p.Transparent.Outputs = append(p.Transparent.Outputs, pczt.TransparentOutput{
			Value:        out.Value,
			ScriptPubKey: out.Script,
		})
	}
	for i := range tx.OrchardActions {
		a := &tx.OrchardActions[i]
		p.Orchard.Actions = append(p.Orchard.Actions, pczt.OrchardAction{
			CvNet: a.Cv,
			Spend: pczt.OrchardSpend{
				Nullifier: a.Nullifier,
				Rk:        a.Rk,
			},
			Output: pczt.OrchardOutput{
				Cmx:           a.Cmx,
				EphemeralKey:  a.EphemeralKey,
				EncCiphertext: a.EncCiphertext[:],
				OutCiphertext: a.OutCiphertext[:],
			},
		})
	}
	p.Orchard.Flags = tx.OrchardFlags
	if tx.OrchardValue < 0 {
		p.Orchard.ValueSum = pczt.ValueBalance{Magnitude: uint64(-tx.OrchardValue), IsNegative: true}
	} else {
		p.Orchard.ValueSum = pczt.ValueBalance{Magnitude: uint64(tx.OrchardValue)}
	}
	p.Orchard.Anchor = tx.OrchardAnchor
	return p
}

// GetShieldedSignatureHash computes the sighash the shielded bundle's
// signatures commit to. It is the ZIP 244 signature digest with the
// per-input leg left empty: all transparent inputs are committed under
// SIGHASH_ALL but no single input is distinguished.
func GetShieldedSignatureHash(p *pczt.PCZT) ([32]byte, error) {
	digests, err := ComputeTxDigests(p)
	if err != nil {
		return [32]byte{}, err
	}
	transparentSigDigest := computeShieldedTransparentSigDigest(p)

	personalization := make([]byte, 16)
	copy(personalization, Zip244HashPersonalization)
	binary.LittleEndian.PutUint32(personalization[12:], p.Global.ConsensusBranchID)

	h, _ := blake2bNew256(personalization)
	h.Write(digests.HeaderDigest[:])
	h.Write(transparentSigDigest[:])
	h.Write(digests.SaplingDigest[:])
	h.Write(digests.OrchardDigest[:])

	var sighash [32]byte
	copy(sighash[:], h.Sum(nil))
	return sighash, nil
}

// computeShieldedTransparentSigDigest is the S.2 leg for shielded
// signatures. With no transparent inputs it degenerates to the plain
// transparent digest; otherwise it commits to every input under
// SIGHASH_ALL with an empty txin leg.
func computeShieldedTransparentSigDigest(p *pczt.PCZT) [32]byte {
	if len(p.Transparent.Inputs) == 0 {
		digest, _ := computeTransparentDigest(p)
		return digest
	}

	h, _ := blake2bNew256([]byte(TransparentDigestPersonalization))
	h.Write([]byte{pczt.SighashAll})

	prevoutsDigest := computePrevoutsSigDigest(p.Transparent.Inputs, false)
	h.Write(prevoutsDigest[:])
	amountsDigest := computeAmountsSigDigest(p.Transparent.Inputs, false)
	h.Write(amountsDigest[:])
	scriptsDigest := computeScriptsSigDigest(p.Transparent.Inputs, false)
	h.Write(scriptsDigest[:])
	sequenceDigest := computeSequenceSigDigest(p.Transparent.Inputs, false)
	h.Write(sequenceDigest[:])
	outputsDigest := computeOutputsSigDigest(p.Transparent.Outputs, pczt.SighashAll, 0)
	h.Write(outputsDigest[:])

	emptyTxin, _ := blake2bNew256([]byte(TxInDigestPersonalization))
	var emptyTxinDigest [32]byte
	copy(emptyTxinDigest[:], emptyTxin.Sum(nil))
	h.Write(emptyTxinDigest[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// readCompactSize decodes the Bitcoin-style variable-length integer and
// rejects non-canonical encodings.
func readCompactSize(r *bytes.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch first {
	case 253:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return 0, err
		}
		if n < 253 {
			return 0, fmt.Errorf("non-canonical compact size")
		}
		return uint64(n), nil
	case 254:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return 0, err
		}
		if n <= 0xFFFF {
			return 0, fmt.Errorf("non-canonical compact size")
		}
		return uint64(n), nil
	case 255:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return 0, err
		}
		if n <= 0xFFFFFFFF {
			return 0, fmt.Errorf("non-canonical compact size")
		}
		return n, nil
	default:
		return uint64(first), nil
	}
}
