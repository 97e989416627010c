package pczt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Wire form: "PCZT" || version (u32le) || postcard-encoded body.
//
// The body follows the postcard conventions: LEB128 varint lengths,
// Option<T> as 0x00/0x01, integers little-endian. Maps are written in
// ascending key order so that serialization is deterministic; combine of a
// single PCZT must round-trip byte for byte.

const (
	MagicBytes   = "PCZT"
	PCZTVersion1 = uint32(1)
)

// Serialize encodes a PCZT to its wire form.
func Serialize(p *PCZT) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(MagicBytes)
	if err := binary.Write(buf, binary.LittleEndian, PCZTVersion1); err != nil {
		return nil, err
	}

	if err := encodeGlobal(buf, &p.Global); err != nil {
		return nil, err
	}
	if err := encodeTransparentBundle(buf, &p.Transparent); err != nil {
		return nil, err
	}
	if err := encodeSaplingBundle(buf, &p.Sapling); err != nil {
		return nil, err
	}
	if err := encodeOrchardBundle(buf, &p.Orchard); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes wire bytes back into a PCZT.
func Parse(data []byte) (*PCZT, error) {
	if len(data) < 8 {
		return nil, &ParseError{Message: "data too short for header"}
	}
	if string(data[0:4]) != MagicBytes {
		return nil, &ParseError{Message: "invalid magic bytes"}
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != PCZTVersion1 {
		return nil, &ParseError{Message: fmt.Sprintf("unsupported version: %d", version)}
	}

	r := bytes.NewReader(data[8:])
	p := &PCZT{}
	if err := decodeGlobal(r, &p.Global); err != nil {
		return nil, &ParseError{Message: "global", Cause: err}
	}
	if err := decodeTransparentBundle(r, &p.Transparent); err != nil {
		return nil, &ParseError{Message: "transparent bundle", Cause: err}
	}
	if err := decodeSaplingBundle(r, &p.Sapling); err != nil {
		return nil, &ParseError{Message: "sapling bundle", Cause: err}
	}
	if err := decodeOrchardBundle(r, &p.Orchard); err != nil {
		return nil, &ParseError{Message: "orchard bundle", Cause: err}
	}
	if r.Len() != 0 {
		return nil, &ParseError{Message: fmt.Sprintf("%d trailing bytes", r.Len())}
	}
	return p, nil
}

func encodeGlobal(w io.Writer, g *Global) error {
	binary.Write(w, binary.LittleEndian, g.TxVersion)
	binary.Write(w, binary.LittleEndian, g.VersionGroupID)
	binary.Write(w, binary.LittleEndian, g.ConsensusBranchID)
	encodeOption32(w, g.FallbackLockTime)
	binary.Write(w, binary.LittleEndian, g.ExpiryHeight)
	binary.Write(w, binary.LittleEndian, g.CoinType)
	w.Write([]byte{g.TxModifiable})
	encodeStringMap(w, g.Proprietary)
	return nil
}

func encodeTransparentBundle(w io.Writer, tb *TransparentBundle) error {
	encodeVarInt(w, uint64(len(tb.Inputs)))
	for i := range tb.Inputs {
		if err := encodeTransparentInput(w, &tb.Inputs[i]); err != nil {
			return err
		}
	}
	encodeVarInt(w, uint64(len(tb.Outputs)))
	for i := range tb.Outputs {
		if err := encodeTransparentOutput(w, &tb.Outputs[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeTransparentInput(w io.Writer, ti *TransparentInput) error {
	w.Write(ti.Pubkey[:])
	w.Write(ti.PrevoutTxID[:])
	binary.Write(w, binary.LittleEndian, ti.PrevoutIndex)

	encodeOption32(w, ti.Sequence)
	encodeOption32(w, ti.RequiredTimeLockTime)
	encodeOption32(w, ti.RequiredHeightLockTime)
	encodeOptionBytes(w, ti.ScriptSig)

	binary.Write(w, binary.LittleEndian, ti.Value)
	encodeBytes(w, ti.ScriptPubKey)
	encodeOptionBytes(w, ti.RedeemScript)

	encodeVarInt(w, uint64(len(ti.PartialSignatures)))
	for _, pubkey := range sortedKeys33(ti.PartialSignatures) {
		w.Write(pubkey[:])
		encodeBytes(w, ti.PartialSignatures[pubkey])
	}

	w.Write([]byte{ti.SighashType})

	encodeVarInt(w, uint64(len(ti.Bip32Derivation)))
	for _, pubkey := range sortedDerivKeys(ti.Bip32Derivation) {
		deriv := ti.Bip32Derivation[pubkey]
		w.Write(pubkey[:])
		encodeZip32Derivation(w, &deriv)
	}

	encodeMap20(w, ti.Ripemd160Preimages)
	encodeMap32(w, ti.Sha256Preimages)
	encodeMap20(w, ti.Hash160Preimages)
	encodeMap32(w, ti.Hash256Preimages)
	encodeStringMap(w, ti.Proprietary)
	return nil
}

func encodeTransparentOutput(w io.Writer, to *TransparentOutput) error {
	binary.Write(w, binary.LittleEndian, to.Value)
	encodeBytes(w, to.ScriptPubKey)
	encodeOptionBytes(w, to.RedeemScript)

	encodeVarInt(w, uint64(len(to.Bip32Derivation)))
	for _, pubkey := range sortedDerivKeys(to.Bip32Derivation) {
		deriv := to.Bip32Derivation[pubkey]
		w.Write(pubkey[:])
		encodeZip32Derivation(w, &deriv)
	}

	encodeOptionString(w, to.UserAddress)
	encodeStringMap(w, to.Proprietary)
	return nil
}

func encodeSaplingBundle(w io.Writer, sb *SaplingBundle) error {
	encodeVarInt(w, 0) // spends, always empty
	encodeVarInt(w, 0) // outputs, always empty
	binary.Write(w, binary.LittleEndian, sb.ValueSum)
	w.Write(sb.Anchor[:])
	w.Write([]byte{0x00}) // bsk, always None
	return nil
}

func encodeOrchardBundle(w io.Writer, ob *OrchardBundle) error {
	encodeVarInt(w, uint64(len(ob.Actions)))
	for i := range ob.Actions {
		if err := encodeOrchardAction(w, &ob.Actions[i]); err != nil {
			return err
		}
	}

	w.Write([]byte{ob.Flags})
	binary.Write(w, binary.LittleEndian, ob.ValueSum.Magnitude)
	encodeBool(w, ob.ValueSum.IsNegative)
	w.Write(ob.Anchor[:])
	encodeOptionBytes(w, ob.ZkProof)
	encodeOption32Bytes(w, ob.Bsk)
	encodeOption64Bytes(w, ob.BindingSig)
	return nil
}

func encodeOrchardAction(w io.Writer, oa *OrchardAction) error {
	w.Write(oa.CvNet[:])
	if err := encodeOrchardSpend(w, &oa.Spend); err != nil {
		return err
	}
	if err := encodeOrchardOutput(w, &oa.Output); err != nil {
		return err
	}
	encodeOption32Bytes(w, oa.Rcv)
	return nil
}

func encodeOrchardSpend(w io.Writer, os *OrchardSpend) error {
	w.Write(os.Nullifier[:])
	w.Write(os.Rk[:])
	encodeOption64Bytes(w, os.SpendAuthSig)
	encodeOption43(w, os.Recipient)
	encodeOptionU64(w, os.Value)
	encodeOption32Bytes(w, os.Rho)
	encodeOption32Bytes(w, os.Rseed)
	encodeOption96(w, os.Fvk)
	encodeOptionWitness(w, os.Witness)
	encodeOption32Bytes(w, os.Alpha)
	encodeOptionZip32Derivation(w, os.Zip32Derivation)
	encodeOption32Bytes(w, os.DummySk)
	encodeStringMap(w, os.Proprietary)
	return nil
}

func encodeOrchardOutput(w io.Writer, oo *OrchardOutput) error {
	w.Write(oo.Cmx[:])
	w.Write(oo.EphemeralKey[:])
	encodeBytes(w, oo.EncCiphertext)
	encodeBytes(w, oo.OutCiphertext)
	encodeOption43(w, oo.Recipient)
	encodeOptionU64(w, oo.Value)
	encodeOption32Bytes(w, oo.Rseed)
	encodeOption32Bytes(w, oo.Ock)
	encodeOptionZip32Derivation(w, oo.Zip32Derivation)
	encodeOptionString(w, oo.UserAddress)
	encodeStringMap(w, oo.Proprietary)
	return nil
}

// Encoding helpers. Maps are emitted in ascending key order.

func encodeVarInt(w io.Writer, n uint64) {
	for {
		b := uint8(n & 0x7F)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		w.Write([]byte{b})
		if n == 0 {
			return
		}
	}
}

func encodeBool(w io.Writer, v bool) {
	if v {
		w.Write([]byte{0x01})
	} else {
		w.Write([]byte{0x00})
	}
}

func encodeString(w io.Writer, s string) {
	b := []byte(s)
	encodeVarInt(w, uint64(len(b)))
	w.Write(b)
}

func encodeBytes(w io.Writer, b []byte) {
	encodeVarInt(w, uint64(len(b)))
	w.Write(b)
}

func encodeOption32(w io.Writer, opt *uint32) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	binary.Write(w, binary.LittleEndian, *opt)
}

func encodeOptionU64(w io.Writer, opt *uint64) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	binary.Write(w, binary.LittleEndian, *opt)
}

func encodeOption32Bytes(w io.Writer, opt *[32]byte) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	w.Write(opt[:])
}

func encodeOption43(w io.Writer, opt *[43]byte) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	w.Write(opt[:])
}

func encodeOption64Bytes(w io.Writer, opt *[64]byte) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	w.Write(opt[:])
}

func encodeOption96(w io.Writer, opt *[96]byte) {
	if opt == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	w.Write(opt[:])
}

func encodeOptionBytes(w io.Writer, b []byte) {
	if len(b) == 0 {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	encodeBytes(w, b)
}

func encodeOptionString(w io.Writer, s *string) {
	if s == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	encodeString(w, *s)
}

func encodeOptionWitness(w io.Writer, mw *MerkleWitness) {
	if mw == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	binary.Write(w, binary.LittleEndian, mw.Position)
	for i := 0; i < 32; i++ {
		w.Write(mw.Path[i][:])
	}
}

func encodeOptionZip32Derivation(w io.Writer, zd *Zip32Derivation) {
	if zd == nil {
		w.Write([]byte{0x00})
		return
	}
	w.Write([]byte{0x01})
	encodeZip32Derivation(w, zd)
}

func encodeZip32Derivation(w io.Writer, zd *Zip32Derivation) {
	w.Write(zd.SeedFingerprint[:])
	encodeVarInt(w, uint64(len(zd.DerivationPath)))
	for _, idx := range zd.DerivationPath {
		binary.Write(w, binary.LittleEndian, idx)
	}
}

func encodeStringMap(w io.Writer, m map[string][]byte) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	encodeVarInt(w, uint64(len(m)))
	for _, k := range keys {
		encodeString(w, k)
		encodeBytes(w, m[k])
	}
}

func encodeMap20(w io.Writer, m map[[20]byte][]byte) {
	keys := make([][20]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	encodeVarInt(w, uint64(len(m)))
	for _, k := range keys {
		w.Write(k[:])
		encodeBytes(w, m[k])
	}
}

func encodeMap32(w io.Writer, m map[[32]byte][]byte) {
	keys := make([][32]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	encodeVarInt(w, uint64(len(m)))
	for _, k := range keys {
		w.Write(k[:])
		encodeBytes(w, m[k])
	}
}

func sortedKeys33(m map[[33]byte][]byte) [][33]byte {
	keys := make([][33]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}

func sortedDerivKeys(m map[[33]byte]Zip32Derivation) [][33]byte {
	keys := make([][33]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}

// Decoding. Each decoder mirrors its encoder exactly.

func decodeVarInt(r io.Reader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		result |= uint64(b[0]&0x7F) << shift
		if b[0]&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("varint overflow")
		}
	}
}

func decodeBytes(r io.Reader) ([]byte, error) {
	length, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeString(r io.Reader) (string, error) {
	b, err := decodeBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeGlobal(r io.Reader, g *Global) error {
	if err := binary.Read(r, binary.LittleEndian, &g.TxVersion); err != nil {
		return fmt.Errorf("tx version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &g.VersionGroupID); err != nil {
		return fmt.Errorf("version group id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &g.ConsensusBranchID); err != nil {
		return fmt.Errorf("consensus branch id: %w", err)
	}

	var err error
	if g.FallbackLockTime, err = decodeOption32(r); err != nil {
		return fmt.Errorf("fallback lock time: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &g.ExpiryHeight); err != nil {
		return fmt.Errorf("expiry height: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &g.CoinType); err != nil {
		return fmt.Errorf("coin type: %w", err)
	}

	var modifiable [1]byte
	if _, err := io.ReadFull(r, modifiable[:]); err != nil {
		return fmt.Errorf("tx modifiable: %w", err)
	}
	g.TxModifiable = modifiable[0]

	if g.Proprietary, err = decodeStringMap(r); err != nil {
		return fmt.Errorf("proprietary: %w", err)
	}
	return nil
}

func decodeTransparentBundle(r io.Reader, tb *TransparentBundle) error {
	inputLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("input count: %w", err)
	}
	tb.Inputs = make([]TransparentInput, inputLen)
	for i := uint64(0); i < inputLen; i++ {
		if err := decodeTransparentInput(r, &tb.Inputs[i]); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	outputLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("output count: %w", err)
	}
	tb.Outputs = make([]TransparentOutput, outputLen)
	for i := uint64(0); i < outputLen; i++ {
		if err := decodeTransparentOutput(r, &tb.Outputs[i]); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	return nil
}

func decodeTransparentInput(r io.Reader, ti *TransparentInput) error {
	if _, err := io.ReadFull(r, ti.Pubkey[:]); err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	if _, err := io.ReadFull(r, ti.PrevoutTxID[:]); err != nil {
		return fmt.Errorf("prevout txid: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ti.PrevoutIndex); err != nil {
		return fmt.Errorf("prevout index: %w", err)
	}

	var err error
	if ti.Sequence, err = decodeOption32(r); err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	if ti.RequiredTimeLockTime, err = decodeOption32(r); err != nil {
		return fmt.Errorf("required time lock time: %w", err)
	}
	if ti.RequiredHeightLockTime, err = decodeOption32(r); err != nil {
		return fmt.Errorf("required height lock time: %w", err)
	}
	if ti.ScriptSig, err = decodeOptionBytes(r); err != nil {
		return fmt.Errorf("script sig: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ti.Value); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if ti.ScriptPubKey, err = decodeBytes(r); err != nil {
		return fmt.Errorf("script pubkey: %w", err)
	}
	if ti.RedeemScript, err = decodeOptionBytes(r); err != nil {
		return fmt.Errorf("redeem script: %w", err)
	}

	mapLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("partial signature count: %w", err)
	}
	ti.PartialSignatures = make(map[[33]byte][]byte)
	for i := uint64(0); i < mapLen; i++ {
		var pubkey [33]byte
		if _, err := io.ReadFull(r, pubkey[:]); err != nil {
			return fmt.Errorf("partial signature key: %w", err)
		}
		sig, err := decodeBytes(r)
		if err != nil {
			return fmt.Errorf("partial signature: %w", err)
		}
		ti.PartialSignatures[pubkey] = sig
	}

	var sighash [1]byte
	if _, err := io.ReadFull(r, sighash[:]); err != nil {
		return fmt.Errorf("sighash type: %w", err)
	}
	ti.SighashType = sighash[0]

	if ti.Bip32Derivation, err = decodeDerivMap(r); err != nil {
		return fmt.Errorf("bip32 derivation: %w", err)
	}
	if ti.Ripemd160Preimages, err = decodeMap20(r); err != nil {
		return fmt.Errorf("ripemd160 preimages: %w", err)
	}
	if ti.Sha256Preimages, err = decodeMap32(r); err != nil {
		return fmt.Errorf("sha256 preimages: %w", err)
	}
	if ti.Hash160Preimages, err = decodeMap20(r); err != nil {
		return fmt.Errorf("hash160 preimages: %w", err)
	}
	if ti.Hash256Preimages, err = decodeMap32(r); err != nil {
		return fmt.Errorf("hash256 preimages: %w", err)
	}
	if ti.Proprietary, err = decodeStringMap(r); err != nil {
		return fmt.Errorf("proprietary: %w", err)
	}
	return nil
}

func decodeTransparentOutput(r io.Reader, to *TransparentOutput) error {
	if err := binary.Read(r, binary.LittleEndian, &to.Value); err != nil {
		return fmt.Errorf("value: %w", err)
	}

	var err error
	if to.ScriptPubKey, err = decodeBytes(r); err != nil {
		return fmt.Errorf("script pubkey: %w", err)
	}
	if to.RedeemScript, err = decodeOptionBytes(r); err != nil {
		return fmt.Errorf("redeem script: %w", err)
	}
	if to.Bip32Derivation, err = decodeDerivMap(r); err != nil {
		return fmt.Errorf("bip32 derivation: %w", err)
	}
	if to.UserAddress, err = decodeOptionString(r); err != nil {
		return fmt.Errorf("user address: %w", err)
	}
	if to.Proprietary, err = decodeStringMap(r); err != nil {
		return fmt.Errorf("proprietary: %w", err)
	}
	return nil
}

func decodeSaplingBundle(r io.Reader, sb *SaplingBundle) error {
	spendLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("spend count: %w", err)
	}
	if spendLen != 0 {
		return fmt.Errorf("sapling spends not supported")
	}

	outputLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("output count: %w", err)
	}
	if outputLen != 0 {
		return fmt.Errorf("sapling outputs not supported")
	}

	if err := binary.Read(r, binary.LittleEndian, &sb.ValueSum); err != nil {
		return fmt.Errorf("value sum: %w", err)
	}
	if _, err := io.ReadFull(r, sb.Anchor[:]); err != nil {
		return fmt.Errorf("anchor: %w", err)
	}

	var hasValue [1]byte
	if _, err := io.ReadFull(r, hasValue[:]); err != nil {
		return fmt.Errorf("bsk: %w", err)
	}
	if hasValue[0] != 0x00 {
		return fmt.Errorf("unexpected sapling bsk")
	}
	return nil
}

func decodeOrchardBundle(r io.Reader, ob *OrchardBundle) error {
	actionLen, err := decodeVarInt(r)
	if err != nil {
		return fmt.Errorf("action count: %w", err)
	}
	ob.Actions = make([]OrchardAction, actionLen)
	for i := uint64(0); i < actionLen; i++ {
		if err := decodeOrchardAction(r, &ob.Actions[i]); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	ob.Flags = flags[0]

	if err := binary.Read(r, binary.LittleEndian, &ob.ValueSum.Magnitude); err != nil {
		return fmt.Errorf("value sum: %w", err)
	}
	var isNeg [1]byte
	if _, err := io.ReadFull(r, isNeg[:]); err != nil {
		return fmt.Errorf("value sum sign: %w", err)
	}
	ob.ValueSum.IsNegative = isNeg[0] == 0x01

	if _, err := io.ReadFull(r, ob.Anchor[:]); err != nil {
		return fmt.Errorf("anchor: %w", err)
	}
	if ob.ZkProof, err = decodeOptionBytes(r); err != nil {
		return fmt.Errorf("zk proof: %w", err)
	}
	if ob.Bsk, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("bsk: %w", err)
	}
	if ob.BindingSig, err = decodeOption64Bytes(r); err != nil {
		return fmt.Errorf("binding sig: %w", err)
	}
	return nil
}

func decodeOrchardAction(r io.Reader, oa *OrchardAction) error {
	if _, err := io.ReadFull(r, oa.CvNet[:]); err != nil {
		return fmt.Errorf("cv net: %w", err)
	}
	if err := decodeOrchardSpend(r, &oa.Spend); err != nil {
		return fmt.Errorf("spend: %w", err)
	}
	if err := decodeOrchardOutput(r, &oa.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	var err error
	if oa.Rcv, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("rcv: %w", err)
	}
	return nil
}

func decodeOrchardSpend(r io.Reader, os *OrchardSpend) error {
	if _, err := io.ReadFull(r, os.Nullifier[:]); err != nil {
		return fmt.Errorf("nullifier: %w", err)
	}
	if _, err := io.ReadFull(r, os.Rk[:]); err != nil {
		return fmt.Errorf("rk: %w", err)
	}

	var err error
	if os.SpendAuthSig, err = decodeOption64Bytes(r); err != nil {
		return fmt.Errorf("spend auth sig: %w", err)
	}
	if os.Recipient, err = decodeOption43(r); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if os.Value, err = decodeOptionU64(r); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if os.Rho, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("rho: %w", err)
	}
	if os.Rseed, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("rseed: %w", err)
	}
	if os.Fvk, err = decodeOption96(r); err != nil {
		return fmt.Errorf("fvk: %w", err)
	}
	if os.Witness, err = decodeOptionWitness(r); err != nil {
		return fmt.Errorf("witness: %w", err)
	}
	if os.Alpha, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("alpha: %w", err)
	}
	if os.Zip32Derivation, err = decodeOptionZip32Derivation(r); err != nil {
		return fmt.Errorf("zip32 derivation: %w", err)
	}
	if os.DummySk, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("dummy sk: %w", err)
	}
	if os.Proprietary, err = decodeStringMap(r); err != nil {
		return fmt.Errorf("proprietary: %w", err)
	}
	return nil
}

func decodeOrchardOutput(r io.Reader, oo *OrchardOutput) error {
	if _, err := io.ReadFull(r, oo.Cmx[:]); err != nil {
		return fmt.Errorf("cmx: %w", err)
	}
	if _, err := io.ReadFull(r, oo.EphemeralKey[:]); err != nil {
		return fmt.Errorf("ephemeral key: %w", err)
	}

	var err error
	if oo.EncCiphertext, err = decodeBytes(r); err != nil {
		return fmt.Errorf("enc ciphertext: %w", err)
	}
	if oo.OutCiphertext, err = decodeBytes(r); err != nil {
		return fmt.Errorf("out ciphertext: %w", err)
	}
	if oo.Recipient, err = decodeOption43(r); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	if oo.Value, err = decodeOptionU64(r); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if oo.Rseed, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("rseed: %w", err)
	}
	if oo.Ock, err = decodeOption32Bytes(r); err != nil {
		return fmt.Errorf("ock: %w", err)
	}
	if oo.Zip32Derivation, err = decodeOptionZip32Derivation(r); err != nil {
		return fmt.Errorf("zip32 derivation: %w", err)
	}
	if oo.UserAddress, err = decodeOptionString(r); err != nil {
		return fmt.Errorf("user address: %w", err)
	}
	if oo.Proprietary, err = decodeStringMap(r); err != nil {
		return fmt.Errorf("proprietary: %w", err)
	}
	return nil
}

// Option decode helpers.

func decodeOptionTag(r io.Reader) (bool, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return false, err
	}
	switch tag[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("invalid option tag 0x%02x", tag[0])
	}
}

func decodeOption32(r io.Reader) (*uint32, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val uint32
	if err := binary.Read(r, binary.LittleEndian, &val); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOptionU64(r io.Reader) (*uint64, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val uint64
	if err := binary.Read(r, binary.LittleEndian, &val); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOption32Bytes(r io.Reader) (*[32]byte, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val [32]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOption43(r io.Reader) (*[43]byte, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val [43]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOption64Bytes(r io.Reader) (*[64]byte, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val [64]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOption96(r io.Reader) (*[96]byte, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var val [96]byte
	if _, err := io.ReadFull(r, val[:]); err != nil {
		return nil, err
	}
	return &val, nil
}

func decodeOptionBytes(r io.Reader) ([]byte, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	return decodeBytes(r)
}

func decodeOptionString(r io.Reader) (*string, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	str, err := decodeString(r)
	if err != nil {
		return nil, err
	}
	return &str, nil
}

func decodeOptionWitness(r io.Reader) (*MerkleWitness, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	var mw MerkleWitness
	if err := binary.Read(r, binary.LittleEndian, &mw.Position); err != nil {
		return nil, err
	}
	for i := 0; i < 32; i++ {
		if _, err := io.ReadFull(r, mw.Path[i][:]); err != nil {
			return nil, err
		}
	}
	return &mw, nil
}

func decodeOptionZip32Derivation(r io.Reader) (*Zip32Derivation, error) {
	ok, err := decodeOptionTag(r)
	if err != nil || !ok {
		return nil, err
	}
	return decodeZip32Derivation(r)
}

func decodeZip32Derivation(r io.Reader) (*Zip32Derivation, error) {
	var zd Zip32Derivation
	if _, err := io.ReadFull(r, zd.SeedFingerprint[:]); err != nil {
		return nil, err
	}
	pathLen, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	zd.DerivationPath = make([]uint32, pathLen)
	for i := uint64(0); i < pathLen; i++ {
		if err := binary.Read(r, binary.LittleEndian, &zd.DerivationPath[i]); err != nil {
			return nil, err
		}
	}
	return &zd, nil
}

func decodeStringMap(r io.Reader) (map[string][]byte, error) {
	mapLen, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte)
	for i := uint64(0); i < mapLen; i++ {
		key, err := decodeString(r)
		if err != nil {
			return nil, err
		}
		val, err := decodeBytes(r)
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	return result, nil
}

func decodeDerivMap(r io.Reader) (map[[33]byte]Zip32Derivation, error) {
	mapLen, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	result := make(map[[33]byte]Zip32Derivation)
	for i := uint64(0); i < mapLen; i++ {
		var pubkey [33]byte
		if _, err := io.ReadFull(r, pubkey[:]); err != nil {
			return nil, err
		}
		deriv, err := decodeZip32Derivation(r)
		if err != nil {
			return nil, err
		}
		result[pubkey] = *deriv
	}
	return result, nil
}

func decodeMap20(r io.Reader) (map[[20]byte][]byte, error) {
	mapLen, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	result := make(map[[20]byte][]byte)
	for i := uint64(0); i < mapLen; i++ {
		var key [20]byte
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return nil, err
		}
		val, err := decodeBytes(r)
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	return result, nil
}

func decodeMap32(r io.Reader) (map[[32]byte][]byte, error) {
	mapLen, err := decodeVarInt(r)
	if err != nil {
		return nil, err
	}
	result := make(map[[32]byte][]byte)
	for i := uint64(0); i < mapLen; i++ {
		var key [32]byte
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return nil, err
		}
		val, err := decodeBytes(r)
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	return result, nil
}
