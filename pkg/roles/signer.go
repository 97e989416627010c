package roles

import (
	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// Signer adds transparent signatures to a finalized PCZT. It can hold a
// private key and sign locally, or accept compact signatures produced by
// an external signer over a sighash obtained from Sighash.
type Signer struct {
	pczt *pczt.PCZT
}

// NewSigner wraps a PCZT for signing.
func NewSigner(p *pczt.PCZT) *Signer {
	return &Signer{pczt: p}
}

// Sighash returns the ZIP 244 signature digest for the given transparent
// input, under the input's recorded sighash type.
func Sighash(p *pczt.PCZT, inputIndex uint32) ([32]byte, error) {
	if int(inputIndex) >= len(p.Transparent.Inputs) {
		return [32]byte{}, &pczt.SighashError{
			InputIndex: inputIndex,
			Message:    "input index out of range",
		}
	}
	input := &p.Transparent.Inputs[inputIndex]
	digest, err := crypto.GetSignatureHash(p, inputIndex, input.SighashType)
	if err != nil {
		return [32]byte{}, &pczt.SighashError{
			InputIndex: inputIndex,
			Message:    "signature hash computation failed",
			Cause:      err,
		}
	}
	return digest, nil
}

// SignTransparentInput signs the given input with a locally held key and
// records the signature against the key's compressed pubkey.
func (s *Signer) SignTransparentInput(inputIndex uint32, privateKey *crypto.PrivateKey) error {
	if int(inputIndex) >= len(s.pczt.Transparent.Inputs) {
		return &pczt.SignatureError{
			Code:       pczt.ErrInvalidInputIndex,
			InputIndex: inputIndex,
			Message:    "input index out of range",
		}
	}
	input := &s.pczt.Transparent.Inputs[inputIndex]

	sighash, err := Sighash(s.pczt, inputIndex)
	if err != nil {
		return err
	}

	derSig, err := privateKey.Sign(sighash)
	if err != nil {
		return &pczt.SignatureError{
			Code:       pczt.ErrInvalidFormat,
			InputIndex: inputIndex,
			Message:    "signing failed",
			Cause:      err,
		}
	}

	sig := make([]byte, 0, len(derSig)+1)
	sig = append(sig, derSig...)
	sig = append(sig, input.SighashType)

	pubkey := privateKey.PublicKey().SerializeCompressed()
	if input.PartialSignatures == nil {
		input.PartialSignatures = map[[33]byte][]byte{}
	}
	input.PartialSignatures[pubkey] = sig

	s.updateModifiableFlags(input.SighashType)
	return nil
}

// AppendSignature attaches an externally produced 64-byte compact
// signature to the given input. The signature must verify against the
// input's recorded pubkey over the input's sighash; it is stored in DER
// form with the sighash type appended, ready for script finalization.
func AppendSignature(p *pczt.PCZT, inputIndex uint32, compactSig [64]byte) error {
	if int(inputIndex) >= len(p.Transparent.Inputs) {
		return &pczt.SignatureError{
			Code:       pczt.ErrInvalidInputIndex,
			InputIndex: inputIndex,
			Message:    "input index out of range",
		}
	}
	input := &p.Transparent.Inputs[inputIndex]

	parsed, err := crypto.ParseCompactSignature(compactSig)
	if err != nil {
		return &pczt.SignatureError{
			Code:       pczt.ErrInvalidFormat,
			InputIndex: inputIndex,
			Message:    "malformed compact signature",
			Cause:      err,
		}
	}

	pubkey, err := crypto.ParsePublicKey(input.Pubkey[:])
	if err != nil {
		return &pczt.SignatureError{
			Code:       pczt.ErrInvalidFormat,
			InputIndex: inputIndex,
			Message:    "input carries an invalid pubkey",
			Cause:      err,
		}
	}

	sighash, err := Sighash(p, inputIndex)
	if err != nil {
		return err
	}
	if !crypto.VerifyCompact(pubkey, sighash, compactSig) {
		return &pczt.SignatureError{
			Code:       pczt.ErrVerificationFailed,
			InputIndex: inputIndex,
			Message:    "signature does not verify against the input pubkey",
		}
	}

	sig := parsed.Serialize()
	sig = append(sig, input.SighashType)
	if input.PartialSignatures == nil {
		input.PartialSignatures = map[[33]byte][]byte{}
	}
	input.PartialSignatures[input.Pubkey] = sig

	NewSigner(p).updateModifiableFlags(input.SighashType)
	return nil
}

// updateModifiableFlags locks down the parts of the transaction the new
// signature commits to.
func (s *Signer) updateModifiableFlags(sighashType uint8) {
	anyoneCanPay := sighashType&pczt.SighashAnyoneCanPay != 0
	baseType := sighashType & 0x1f

	if !anyoneCanPay {
		s.pczt.Global.TxModifiable &^= pczt.FlagTransparentInputsModifiable
		s.pczt.Global.TxModifiable &^= pczt.FlagShieldedModifiable
	}
	if baseType == pczt.SighashAll {
		s.pczt.Global.TxModifiable &^= pczt.FlagTransparentOutputsModifiable
		s.pczt.Global.TxModifiable &^= pczt.FlagShieldedModifiable
	}
	if baseType == pczt.SighashSingle {
		s.pczt.Global.TxModifiable |= pczt.FlagHasSighashSingle
	}
}

// Finish returns the PCZT for the next stage.
func (s *Signer) Finish() *pczt.PCZT {
	return s.pczt
}
