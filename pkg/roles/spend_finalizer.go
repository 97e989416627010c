package roles

import (
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// SpendFinalizer assembles the final scriptSig for every transparent
// input from the collected partial signatures, then strips the signing
// metadata the scripts were built from.
type SpendFinalizer struct {
	pczt *pczt.PCZT
}

// NewSpendFinalizer wraps a fully signed PCZT.
func NewSpendFinalizer(p *pczt.PCZT) *SpendFinalizer {
	return &SpendFinalizer{pczt: p}
}

// Finalize builds each input's scriptSig. Every input must carry enough
// signatures for its script type.
func (f *SpendFinalizer) Finalize() error {
	for i := range f.pczt.Transparent.Inputs {
		input := &f.pczt.Transparent.Inputs[i]
		if input.ScriptSig != nil {
			continue
		}
		var err error
		if input.RedeemScript != nil {
			err = finalizeP2SH(input)
		} else {
			err = finalizeP2PKH(input)
		}
		if err != nil {
			return &pczt.FinalizationError{
				Code:    pczt.ErrSpendFinalization,
				Message: fmt.Sprintf("input %d", i),
				Cause:   err,
			}
		}
		clearInputMetadata(input)
	}
	return nil
}

// finalizeP2PKH expects exactly one signature and emits
// <sig+type> <pubkey> as two pushes.
func finalizeP2PKH(input *pczt.TransparentInput) error {
	if len(input.PartialSignatures) != 1 {
		return fmt.Errorf("need exactly 1 signature, have %d", len(input.PartialSignatures))
	}
	for pubkey, sig := range input.PartialSignatures {
		if len(sig) > 0x4b {
			return fmt.Errorf("signature push too large for a direct push opcode")
		}
		scriptSig := make([]byte, 0, 2+len(sig)+len(pubkey))
		scriptSig = append(scriptSig, byte(len(sig)))
		scriptSig = append(scriptSig, sig...)
		scriptSig = append(scriptSig, byte(len(pubkey)))
		scriptSig = append(scriptSig, pubkey[:]...)
		input.ScriptSig = scriptSig
	}
	return nil
}

// finalizeP2SH emits OP_0, every collected signature, then the redeem
// script. OP_0 compensates for the historical off-by-one in OP_CHECKMULTISIG.
func finalizeP2SH(input *pczt.TransparentInput) error {
	if len(input.PartialSignatures) == 0 {
		return fmt.Errorf("no signatures collected")
	}
	scriptSig := []byte{0x00}
	for _, sig := range input.PartialSignatures {
		if len(sig) > 0x4b {
			return fmt.Errorf("signature push too large")
		}
		scriptSig = append(scriptSig, byte(len(sig)))
		scriptSig = append(scriptSig, sig...)
	}
	redeem := input.RedeemScript
	switch {
	case len(redeem) <= 0x4b:
		scriptSig = append(scriptSig, byte(len(redeem)))
	case len(redeem) <= 0xff:
		scriptSig = append(scriptSig, 0x4c, byte(len(redeem))) // OP_PUSHDATA1
	default:
		return fmt.Errorf("redeem script too large")
	}
	scriptSig = append(scriptSig, redeem...)
	input.ScriptSig = scriptSig
	return nil
}

// clearInputMetadata drops signing material once the scriptSig exists.
func clearInputMetadata(input *pczt.TransparentInput) {
	input.PartialSignatures = nil
	input.Bip32Derivation = nil
	input.Ripemd160Preimages = nil
	input.Sha256Preimages = nil
	input.Hash160Preimages = nil
	input.Hash256Preimages = nil
}

// Finish returns the PCZT for extraction.
func (f *SpendFinalizer) Finish() *pczt.PCZT {
	return f.pczt
}
