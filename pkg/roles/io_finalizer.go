package roles

import (
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
)

// IoFinalizer locks the transaction shape. After it runs, no stage may
// add or remove inputs, outputs, or actions; the Prover and Signers can
// work on a stable sighash.
type IoFinalizer struct {
	pczt   *pczt.PCZT
	engine prover.Engine
}

// NewIoFinalizer wraps a PCZT. engine may be nil when the PCZT has no
// Orchard actions.
func NewIoFinalizer(p *pczt.PCZT, engine prover.Engine) *IoFinalizer {
	return &IoFinalizer{pczt: p, engine: engine}
}

// Finalize clears all modifiable flags and, if the PCZT carries Orchard
// actions, folds the per-action rcv values into the binding signature key
// and signs the dummy spends.
func (f *IoFinalizer) Finalize() error {
	f.pczt.Global.TxModifiable = 0

	if len(f.pczt.Orchard.Actions) == 0 {
		return nil
	}
	if f.engine == nil {
		return fmt.Errorf("no proving engine configured for shielded finalization")
	}
	if err := f.finalizeBindingKey(); err != nil {
		return err
	}
	return f.signDummySpends()
}

// finalizeBindingKey computes bsk as the sum of all action rcv values.
func (f *IoFinalizer) finalizeBindingKey() error {
	var bsk [32]byte
	for i := range f.pczt.Orchard.Actions {
		rcv := f.pczt.Orchard.Actions[i].Rcv
		if rcv == nil {
			return fmt.Errorf("action %d is missing rcv", i)
		}
		sum, err := f.engine.AddScalars(bsk, *rcv)
		if err != nil {
			return fmt.Errorf("fold rcv of action %d: %w", i, err)
		}
		bsk = sum
	}
	f.pczt.Orchard.Bsk = &bsk
	return nil
}

// signDummySpends authorizes each dummy spend and drops its secret key.
// Dummy spends commit to no real note, so a fixed zero sighash is
// sufficient; once signed the secret key has no further use.
func (f *IoFinalizer) signDummySpends() error {
	var zeroSighash [32]byte
	for i := range f.pczt.Orchard.Actions {
		spend := &f.pczt.Orchard.Actions[i].Spend
		if spend.DummySk == nil {
			continue
		}
		if spend.Alpha == nil {
			return fmt.Errorf("dummy spend %d is missing alpha", i)
		}
		sig, err := f.engine.SignDummySpend(*spend.DummySk, *spend.Alpha, zeroSighash)
		if err != nil {
			return fmt.Errorf("sign dummy spend %d: %w", i, err)
		}
		spend.SpendAuthSig = &sig
		spend.DummySk = nil
	}
	return nil
}

// Finish returns the PCZT for the next stage.
func (f *IoFinalizer) Finish() *pczt.PCZT {
	return f.pczt
}
