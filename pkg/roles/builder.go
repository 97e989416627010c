package roles

import (
	"bytes"
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/fees"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
	"github.com/zclabs/zcash-pczt/pkg/request"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
)

// BuildProposal runs the Creator, Constructor, and IO Finalizer in
// sequence: it turns a payment request plus a set of spendable inputs
// into a shape-locked PCZT ready for proving and signing.
//
// Change goes to changeAddress when it is non-empty (it must decode to a
// transparent receiver), otherwise to a P2PKH script derived from the
// first input's pubkey. A change output is added only when the inputs
// exceed the requested payments plus the ZIP 317 fee; otherwise the
// residual value is absorbed into the fee.
func BuildProposal(inputs []utxo.Input, req *request.TransactionRequest, changeAddress string, engine prover.Engine) (*pczt.PCZT, error) {
	if req == nil || len(req.Payments) == 0 {
		return nil, &pczt.ProposalError{
			Code:    pczt.ErrInvalidRequest,
			Message: "request has no payments",
		}
	}
	if len(inputs) == 0 {
		return nil, &pczt.ProposalError{
			Code:    pczt.ErrInvalidRequest,
			Message: "no spendable inputs",
		}
	}

	seen := make(map[[36]byte]struct{}, len(inputs))
	var totalIn uint64
	for i, in := range inputs {
		var key [36]byte
		copy(key[:32], in.TxID[:])
		key[32] = byte(in.Vout)
		key[33] = byte(in.Vout >> 8)
		key[34] = byte(in.Vout >> 16)
		key[35] = byte(in.Vout >> 24)
		if _, dup := seen[key]; dup {
			return nil, &pczt.ProposalError{
				Code:    pczt.ErrPcztCreation,
				Message: fmt.Sprintf("input %d spends an already-included outpoint", i),
			}
		}
		seen[key] = struct{}{}
		totalIn += in.Amount
	}

	// Classify every payment address up front so an invalid one fails the
	// whole proposal before any state is built.
	kinds := make([]address.Classification, len(req.Payments))
	var nTransparent, nShielded uint64
	for i, payment := range req.Payments {
		if payment.Amount == 0 {
			return nil, &pczt.ProposalError{
				Code:    pczt.ErrPcztCreation,
				Message: fmt.Sprintf("payment %d has zero value", i),
			}
		}
		c := address.Classify(payment.Address, req.Mainnet)
		switch c.Kind {
		case address.KindTransparent:
			nTransparent++
		case address.KindShieldedCapable:
			nShielded++
		default:
			return nil, &pczt.ProposalError{
				Code:    pczt.ErrInvalidAddress,
				Message: fmt.Sprintf("payment %d address does not decode for this network", i),
			}
		}
		kinds[i] = c
	}

	changeScript, err := resolveChangeScript(inputs, changeAddress, req.Mainnet)
	if err != nil {
		return nil, err
	}

	totalOut := req.TotalAmount()
	// Fee is estimated assuming the change output exists. If change turns
	// out to be unnecessary the realized fee absorbs the difference.
	fee := fees.Calculate(uint64(len(inputs)), nTransparent+1, nShielded)
	if totalIn < totalOut {
		return nil, &pczt.ProposalError{
			Code:    pczt.ErrInsufficientFunds,
			Message: fmt.Sprintf("inputs total %d but payments require %d", totalIn, totalOut),
		}
	}

	params := req.ConsensusParams()
	var anchor [32]byte
	p := NewCreator(params, anchor).Create()

	constructor := NewConstructor(p, engine)
	for _, in := range inputs {
		if err := constructor.AddTransparentInput(in); err != nil {
			return nil, &pczt.ProposalError{
				Code: pczt.ErrPcztCreation, Message: "add input", Cause: err,
			}
		}
	}
	for i, payment := range req.Payments {
		switch kinds[i].Kind {
		case address.KindTransparent:
			err = constructor.AddTransparentOutput(payment.Amount, kinds[i].Script)
		case address.KindShieldedCapable:
			err = constructor.AddOrchardOutput(*kinds[i].Orchard, payment.Amount, payment.Memo)
		}
		if err != nil {
			return nil, &pczt.ProposalError{
				Code: pczt.ErrPcztCreation, Message: fmt.Sprintf("add payment %d", i), Cause: err,
			}
		}
	}

	if totalIn > totalOut+fee {
		change := totalIn - totalOut - fee
		if err := constructor.AddTransparentOutput(change, changeScript); err != nil {
			return nil, &pczt.ProposalError{
				Code: pczt.ErrPcztCreation, Message: "add change output", Cause: err,
			}
		}
	}

	finalizer := NewIoFinalizer(constructor.Finish(), engine)
	if err := finalizer.Finalize(); err != nil {
		return nil, &pczt.ProposalError{
			Code: pczt.ErrPcztCreation, Message: "finalize transaction shape", Cause: err,
		}
	}
	return finalizer.Finish(), nil
}

// resolveChangeScript picks the script change is paid to: the supplied
// transparent address when given, else P2PKH of the first input's pubkey.
func resolveChangeScript(inputs []utxo.Input, changeAddress string, mainnet bool) ([]byte, error) {
	if changeAddress != "" {
		c := address.Classify(changeAddress, mainnet)
		if c.Kind != address.KindTransparent {
			return nil, &pczt.ProposalError{
				Code:    pczt.ErrInvalidAddress,
				Message: "change address must be transparent",
			}
		}
		return c.Script, nil
	}
	hash := crypto.Hash160(inputs[0].Pubkey[:])
	return address.P2PKHScript(hash), nil
}

// ExpectedChange describes the change output a proposal was built with,
// for later verification against a PCZT coming back from an untrusted
// party.
type ExpectedChange struct {
	Script []byte
	Value  uint64
}

// ChangeOutputs extracts the change outputs a freshly built proposal
// carries: every transparent output not exactly matching a requested
// payment. Call it on the PCZT returned by BuildProposal, before the
// PCZT leaves trusted hands.
func ChangeOutputs(p *pczt.PCZT, req *request.TransactionRequest) []ExpectedChange {
	claimed := make([]bool, len(p.Transparent.Outputs))
	for _, payment := range req.Payments {
		c := address.Classify(payment.Address, req.Mainnet)
		if c.Kind != address.KindTransparent {
			continue
		}
		for i := range p.Transparent.Outputs {
			out := &p.Transparent.Outputs[i]
			if !claimed[i] && out.Value == payment.Amount && bytes.Equal(out.ScriptPubKey, c.Script) {
				claimed[i] = true
				break
			}
		}
	}
	var change []ExpectedChange
	for i := range p.Transparent.Outputs {
		if !claimed[i] {
			out := &p.Transparent.Outputs[i]
			script := make([]byte, len(out.ScriptPubKey))
			copy(script, out.ScriptPubKey)
			change = append(change, ExpectedChange{Script: script, Value: out.Value})
		}
	}
	return change
}
