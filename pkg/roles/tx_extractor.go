package roles

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
)

// TxExtractor validates a finished PCZT and serializes it into final v5
// transaction bytes. Extraction destroys the PCZT's usefulness; the
// resulting bytes are what gets broadcast.
type TxExtractor struct {
	pczt   *pczt.PCZT
	engine prover.Engine
}

// NewTxExtractor wraps a finalized PCZT. engine may be nil when the PCZT
// has no Orchard actions.
func NewTxExtractor(p *pczt.PCZT, engine prover.Engine) *TxExtractor {
	return &TxExtractor{pczt: p, engine: engine}
}

// Extract runs script finalization if needed, validates completeness,
// signs the shielded bundle binding, and serializes.
func (e *TxExtractor) Extract() ([]byte, error) {
	if err := e.finalizeScripts(); err != nil {
		return nil, err
	}
	if err := e.validate(); err != nil {
		return nil, &pczt.FinalizationError{
			Code:    pczt.ErrTransactionExtraction,
			Message: "transaction is not complete",
			Cause:   err,
		}
	}
	if err := e.createBindingSignature(); err != nil {
		return nil, &pczt.FinalizationError{
			Code:    pczt.ErrTransactionExtraction,
			Message: "binding signature",
			Cause:   err,
		}
	}
	tx, err := e.serializeTransaction()
	if err != nil {
		return nil, &pczt.FinalizationError{
			Code:    pczt.ErrSerialization,
			Message: "transaction encoding failed",
			Cause:   err,
		}
	}
	return tx, nil
}

// finalizeScripts builds any missing scriptSigs from partial signatures.
func (e *TxExtractor) finalizeScripts() error {
	for i := range e.pczt.Transparent.Inputs {
		if e.pczt.Transparent.Inputs[i].ScriptSig == nil {
			return NewSpendFinalizer(e.pczt).Finalize()
		}
	}
	return nil
}

// validate checks that every stage has run to completion.
func (e *TxExtractor) validate() error {
	if e.pczt.Global.TxModifiable != 0 {
		return fmt.Errorf("transaction shape was never locked")
	}
	for i := range e.pczt.Transparent.Inputs {
		if e.pczt.Transparent.Inputs[i].ScriptSig == nil {
			return fmt.Errorf("input %d has no scriptSig", i)
		}
	}
	if len(e.pczt.Orchard.Actions) > 0 {
		if e.pczt.Orchard.ZkProof == nil {
			return fmt.Errorf("orchard bundle has no proof")
		}
		if e.pczt.Orchard.Bsk == nil && e.pczt.Orchard.BindingSig == nil {
			return fmt.Errorf("orchard bundle has no binding signature key")
		}
		for i := range e.pczt.Orchard.Actions {
			if e.pczt.Orchard.Actions[i].Spend.SpendAuthSig == nil {
				return fmt.Errorf("action %d has no spend authorization", i)
			}
		}
	}
	return nil
}

// createBindingSignature signs the shielded sighash with the binding
// signature key, then discards the key.
func (e *TxExtractor) createBindingSignature() error {
	if len(e.pczt.Orchard.Actions) == 0 || e.pczt.Orchard.BindingSig != nil {
		return nil
	}
	if e.engine == nil {
		return fmt.Errorf("no proving engine configured")
	}
	sighash, err := crypto.GetShieldedSignatureHash(e.pczt)
	if err != nil {
		return err
	}
	sig, err := e.engine.SignBinding(*e.pczt.Orchard.Bsk, sighash)
	if err != nil {
		return err
	}
	e.pczt.Orchard.BindingSig = &sig
	e.pczt.Orchard.Bsk = nil
	return nil
}

// serializeTransaction emits the ZIP 225 v5 wire format: header,
// transparent bundle, empty Sapling bundle, Orchard bundle.
func (e *TxExtractor) serializeTransaction() ([]byte, error) {
	var buf bytes.Buffer
	e.writeHeader(&buf)
	e.writeTransparentBundle(&buf)
	e.writeSaplingBundle(&buf)
	if err := e.writeOrchardBundle(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeHeader emits version (with the overwinter bit), version group id,
// consensus branch id, lock time, and expiry height, all little-endian.
func (e *TxExtractor) writeHeader(buf *bytes.Buffer) {
	binary.Write(buf, binary.LittleEndian, e.pczt.Global.TxVersion|(1<<31))
	binary.Write(buf, binary.LittleEndian, e.pczt.Global.VersionGroupID)
	binary.Write(buf, binary.LittleEndian, e.pczt.Global.ConsensusBranchID)

	lockTime := uint32(0)
	if e.pczt.Global.FallbackLockTime != nil {
		lockTime = *e.pczt.Global.FallbackLockTime
	}
	binary.Write(buf, binary.LittleEndian, lockTime)
	binary.Write(buf, binary.LittleEndian, e.pczt.Global.ExpiryHeight)
}

func (e *TxExtractor) writeTransparentBundle(buf *bytes.Buffer) {
	writeCompactSize(buf, uint64(len(e.pczt.Transparent.Inputs)))
	for i := range e.pczt.Transparent.Inputs {
		input := &e.pczt.Transparent.Inputs[i]
		buf.Write(input.PrevoutTxID[:])
		binary.Write(buf, binary.LittleEndian, input.PrevoutIndex)

		writeCompactSize(buf, uint64(len(input.ScriptSig)))
		buf.Write(input.ScriptSig)

		sequence := uint32(0xFFFFFFFF)
		if input.Sequence != nil {
			sequence = *input.Sequence
		}
		binary.Write(buf, binary.LittleEndian, sequence)
	}

	writeCompactSize(buf, uint64(len(e.pczt.Transparent.Outputs)))
	for i := range e.pczt.Transparent.Outputs {
		output := &e.pczt.Transparent.Outputs[i]
		binary.Write(buf, binary.LittleEndian, output.Value)
		writeCompactSize(buf, uint64(len(output.ScriptPubKey)))
		buf.Write(output.ScriptPubKey)
	}
}

// writeSaplingBundle emits an empty bundle: no spends, no outputs.
func (e *TxExtractor) writeSaplingBundle(buf *bytes.Buffer) {
	writeCompactSize(buf, 0)
	writeCompactSize(buf, 0)
}

func (e *TxExtractor) writeOrchardBundle(buf *bytes.Buffer) error {
	actions := e.pczt.Orchard.Actions
	writeCompactSize(buf, uint64(len(actions)))
	if len(actions) == 0 {
		return nil
	}

	for i := range actions {
		a := &actions[i]
		if len(a.Output.EncCiphertext) != 580 || len(a.Output.OutCiphertext) != 80 {
			return fmt.Errorf("action %d has malformed ciphertexts", i)
		}
		buf.Write(a.CvNet[:])
		buf.Write(a.Spend.Nullifier[:])
		buf.Write(a.Spend.Rk[:])
		buf.Write(a.Output.Cmx[:])
		buf.Write(a.Output.EphemeralKey[:])
		buf.Write(a.Output.EncCiphertext)
		buf.Write(a.Output.OutCiphertext)
	}

	buf.WriteByte(e.pczt.Orchard.Flags)

	valueBalance := int64(e.pczt.Orchard.ValueSum.Magnitude)
	if e.pczt.Orchard.ValueSum.IsNegative {
		valueBalance = -valueBalance
	}
	binary.Write(buf, binary.LittleEndian, valueBalance)

	buf.Write(e.pczt.Orchard.Anchor[:])

	writeCompactSize(buf, uint64(len(e.pczt.Orchard.ZkProof)))
	buf.Write(e.pczt.Orchard.ZkProof)

	for i := range actions {
		buf.Write(actions[i].Spend.SpendAuthSig[:])
	}

	if e.pczt.Orchard.BindingSig == nil {
		return fmt.Errorf("binding signature missing")
	}
	buf.Write(e.pczt.Orchard.BindingSig[:])
	return nil
}

// writeCompactSize emits the Bitcoin-style variable-length integer.
func writeCompactSize(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 253:
		buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		buf.WriteByte(253)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xFFFFFFFF:
		buf.WriteByte(254)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(255)
		binary.Write(buf, binary.LittleEndian, n)
	}
}
