package roles

import (
	"bytes"
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/request"
)

// VerifyBeforeSigning checks a PCZT that has passed through untrusted
// hands against the original request before any signature is produced.
//
// Transparent outputs are partitioned into change (exact script and value
// match against expectedChange, each entry matched once) and payments.
// Every transparent payment must have an exact (script, value) match
// among the non-change outputs. Shielded payments can only be checked for
// presence: the values and addresses of placed actions are not observable.
//
// When expectedChange is empty the output count check is a lower bound
// only; that bound cannot detect an attacker substituting extra outputs
// for fee. Callers that built the proposal themselves should always pass
// the change recorded at build time.
func VerifyBeforeSigning(p *pczt.PCZT, req *request.TransactionRequest, expectedChange []ExpectedChange) error {
	changeMatched := make([]bool, len(p.Transparent.Outputs))
	for _, exp := range expectedChange {
		found := false
		for i := range p.Transparent.Outputs {
			out := &p.Transparent.Outputs[i]
			if !changeMatched[i] && out.Value == exp.Value && bytes.Equal(out.ScriptPubKey, exp.Script) {
				changeMatched[i] = true
				found = true
				break
			}
		}
		if !found {
			return &pczt.VerificationFailure{
				Code:    pczt.ErrChangeMismatch,
				Message: "expected change output not present",
			}
		}
	}

	paymentOutputs := len(p.Transparent.Outputs) - len(expectedChange)
	shieldedCount := len(p.Orchard.Actions)
	totalOutputs := paymentOutputs + shieldedCount
	if len(expectedChange) > 0 {
		if totalOutputs != len(req.Payments) {
			return &pczt.VerificationFailure{
				Code:    pczt.ErrOutputMismatch,
				Message: fmt.Sprintf("expected %d payment outputs, found %d", len(req.Payments), totalOutputs),
			}
		}
	} else if totalOutputs < len(req.Payments) {
		return &pczt.VerificationFailure{
			Code:    pczt.ErrOutputMismatch,
			Message: fmt.Sprintf("expected at least %d outputs, found %d", len(req.Payments), totalOutputs),
		}
	}

	var nShielded int
	claimed := make([]bool, len(p.Transparent.Outputs))
	copy(claimed, changeMatched)
	for i, payment := range req.Payments {
		c := address.Classify(payment.Address, req.Mainnet)
		if c.Kind != address.KindTransparent {
			nShielded++
			continue
		}
		found := false
		for j := range p.Transparent.Outputs {
			out := &p.Transparent.Outputs[j]
			if !claimed[j] && out.Value == payment.Amount && bytes.Equal(out.ScriptPubKey, c.Script) {
				claimed[j] = true
				found = true
				break
			}
		}
		if !found {
			return &pczt.VerificationFailure{
				Code:    pczt.ErrOutputMismatch,
				Message: fmt.Sprintf("payment %d has no matching transparent output", i),
			}
		}
	}

	if nShielded > 0 && shieldedCount == 0 {
		return &pczt.VerificationFailure{
			Code:    pczt.ErrOutputMismatch,
			Message: "request has shielded payments but the transaction carries no actions",
		}
	}

	// With no shielded outputs every zatoshi is observable, so the output
	// total must cover the requested total up to a 1% fee allowance.
	if shieldedCount == 0 {
		var totalOut uint64
		for i := range p.Transparent.Outputs {
			totalOut += p.Transparent.Outputs[i].Value
		}
		requested := req.TotalAmount()
		if requested > totalOut+requested/100 {
			return &pczt.VerificationFailure{
				Code:    pczt.ErrInvalidFee,
				Message: fmt.Sprintf("outputs total %d falls short of requested %d", totalOut, requested),
			}
		}
	}
	return nil
}
