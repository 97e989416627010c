package roles

import (
	"bytes"
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// Combine merges PCZTs that were signed in parallel from the same
// proposal. All inputs must describe the same transaction; signatures and
// other per-party metadata are unioned. A single PCZT is returned as-is.
func Combine(pczts []*pczt.PCZT) (*pczt.PCZT, error) {
	if len(pczts) == 0 {
		return nil, &pczt.CombineError{
			Code:    pczt.ErrNoPczts,
			Message: "nothing to combine",
		}
	}
	base := pczts[0]
	for i, other := range pczts[1:] {
		if err := validateCompatible(base, other); err != nil {
			return nil, &pczt.CombineError{
				Code:    pczt.ErrDataMismatch,
				Message: fmt.Sprintf("pczt %d describes a different transaction", i+1),
				Cause:   err,
			}
		}
	}
	for i, other := range pczts[1:] {
		if err := mergeInto(base, other); err != nil {
			return nil, &pczt.CombineError{
				Code:    pczt.ErrDataMismatch,
				Message: fmt.Sprintf("pczt %d conflicts with earlier data", i+1),
				Cause:   err,
			}
		}
	}
	return base, nil
}

// validateCompatible checks that two PCZTs describe the same transaction
// shape: same consensus parameters, same inputs, same outputs, same
// actions.
func validateCompatible(a, b *pczt.PCZT) error {
	switch {
	case a.Global.TxVersion != b.Global.TxVersion:
		return fmt.Errorf("tx version mismatch")
	case a.Global.VersionGroupID != b.Global.VersionGroupID:
		return fmt.Errorf("version group mismatch")
	case a.Global.ConsensusBranchID != b.Global.ConsensusBranchID:
		return fmt.Errorf("consensus branch mismatch")
	case a.Global.ExpiryHeight != b.Global.ExpiryHeight:
		return fmt.Errorf("expiry height mismatch")
	case len(a.Transparent.Inputs) != len(b.Transparent.Inputs):
		return fmt.Errorf("input count mismatch")
	case len(a.Transparent.Outputs) != len(b.Transparent.Outputs):
		return fmt.Errorf("output count mismatch")
	case len(a.Orchard.Actions) != len(b.Orchard.Actions):
		return fmt.Errorf("action count mismatch")
	}

	for i := range a.Transparent.Inputs {
		ai, bi := &a.Transparent.Inputs[i], &b.Transparent.Inputs[i]
		if ai.PrevoutTxID != bi.PrevoutTxID || ai.PrevoutIndex != bi.PrevoutIndex {
			return fmt.Errorf("input %d spends a different outpoint", i)
		}
		if ai.Value != bi.Value {
			return fmt.Errorf("input %d value mismatch", i)
		}
	}
	for i := range a.Transparent.Outputs {
		ao, bo := &a.Transparent.Outputs[i], &b.Transparent.Outputs[i]
		if ao.Value != bo.Value || !bytes.Equal(ao.ScriptPubKey, bo.ScriptPubKey) {
			return fmt.Errorf("output %d mismatch", i)
		}
	}
	for i := range a.Orchard.Actions {
		aa, ba := &a.Orchard.Actions[i], &b.Orchard.Actions[i]
		if aa.Output.Cmx != ba.Output.Cmx || aa.Spend.Nullifier != ba.Spend.Nullifier {
			return fmt.Errorf("action %d mismatch", i)
		}
	}
	return nil
}

// mergeInto unions other's metadata and signatures into base. Two
// different signatures under the same pubkey for the same input is a
// conflict; other colliding metadata keeps base's value.
func mergeInto(base, other *pczt.PCZT) error {
	mergeProprietary(&base.Global.Proprietary, other.Global.Proprietary)

	for i := range base.Transparent.Inputs {
		if err := mergeTransparentInput(&base.Transparent.Inputs[i], &other.Transparent.Inputs[i]); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	for i := range base.Transparent.Outputs {
		mergeTransparentOutput(&base.Transparent.Outputs[i], &other.Transparent.Outputs[i])
	}
	for i := range base.Orchard.Actions {
		mergeOrchardAction(&base.Orchard.Actions[i], &other.Orchard.Actions[i])
	}
	if base.Orchard.ZkProof == nil {
		base.Orchard.ZkProof = other.Orchard.ZkProof
	}
	if base.Orchard.Bsk == nil {
		base.Orchard.Bsk = other.Orchard.Bsk
	}
	if base.Orchard.BindingSig == nil {
		base.Orchard.BindingSig = other.Orchard.BindingSig
	}
	return nil
}

func mergeTransparentInput(dst, src *pczt.TransparentInput) error {
	if dst.PartialSignatures == nil {
		dst.PartialSignatures = map[[33]byte][]byte{}
	}
	for pubkey, sig := range src.PartialSignatures {
		if existing, ok := dst.PartialSignatures[pubkey]; ok {
			if !bytes.Equal(existing, sig) {
				return fmt.Errorf("conflicting signatures for the same pubkey")
			}
		} else {
			dst.PartialSignatures[pubkey] = sig
		}
	}
	if dst.Bip32Derivation == nil {
		dst.Bip32Derivation = map[[33]byte]pczt.Zip32Derivation{}
	}
	for pubkey, deriv := range src.Bip32Derivation {
		if _, ok := dst.Bip32Derivation[pubkey]; !ok {
			dst.Bip32Derivation[pubkey] = deriv
		}
	}
	if dst.RedeemScript == nil {
		dst.RedeemScript = src.RedeemScript
	}
	if dst.ScriptSig == nil {
		dst.ScriptSig = src.ScriptSig
	}
	mergePreimages20(&dst.Ripemd160Preimages, src.Ripemd160Preimages)
	mergePreimages32(&dst.Sha256Preimages, src.Sha256Preimages)
	mergePreimages20(&dst.Hash160Preimages, src.Hash160Preimages)
	mergePreimages32(&dst.Hash256Preimages, src.Hash256Preimages)
	mergeProprietary(&dst.Proprietary, src.Proprietary)
	return nil
}

func mergeTransparentOutput(dst, src *pczt.TransparentOutput) {
	if dst.Bip32Derivation == nil {
		dst.Bip32Derivation = map[[33]byte]pczt.Zip32Derivation{}
	}
	for pubkey, deriv := range src.Bip32Derivation {
		if _, ok := dst.Bip32Derivation[pubkey]; !ok {
			dst.Bip32Derivation[pubkey] = deriv
		}
	}
	if dst.UserAddress == nil {
		dst.UserAddress = src.UserAddress
	}
	if dst.RedeemScript == nil {
		dst.RedeemScript = src.RedeemScript
	}
	mergeProprietary(&dst.Proprietary, src.Proprietary)
}

func mergeOrchardAction(dst, src *pczt.OrchardAction) {
	if dst.Spend.SpendAuthSig == nil {
		dst.Spend.SpendAuthSig = src.Spend.SpendAuthSig
	}
	if dst.Rcv == nil {
		dst.Rcv = src.Rcv
	}
	mergeProprietary(&dst.Spend.Proprietary, src.Spend.Proprietary)
	mergeProprietary(&dst.Output.Proprietary, src.Output.Proprietary)
}

func mergeProprietary(dst *map[string][]byte, src map[string][]byte) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = map[string][]byte{}
	}
	for k, v := range src {
		if _, ok := (*dst)[k]; !ok {
			(*dst)[k] = v
		}
	}
}

func mergePreimages20(dst *map[[20]byte][]byte, src map[[20]byte][]byte) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = map[[20]byte][]byte{}
	}
	for k, v := range src {
		if _, ok := (*dst)[k]; !ok {
			(*dst)[k] = v
		}
	}
}

func mergePreimages32(dst *map[[32]byte][]byte, src map[[32]byte][]byte) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = map[[32]byte][]byte{}
	}
	for k, v := range src {
		if _, ok := (*dst)[k]; !ok {
			(*dst)[k] = v
		}
	}
}
