// Package prover defines the boundary to the external Orchard proving
// engine. The engine supplies every Pallas-curve operation the pipeline
// needs: building shielded actions, dummy-spend and binding signatures,
// scalar folding, and proof generation.
//
// Proof generation requires a proving context that is expensive to build.
// The Prover wrapper constructs it lazily, at most once per process; the
// first caller blocks while it is built and later callers reuse it.
package prover

import (
	"fmt"
	"sync"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// Engine is the external collaborator performing Orchard cryptography.
// Implementations must be safe for concurrent use once PrepareContext has
// returned.
type Engine interface {
	// PrepareContext builds the proving context. Called exactly once per
	// process, before any Prove call.
	PrepareContext() error

	// BuildAction assembles a shielded action paying value to the given
	// raw Orchard receiver, with a dummy spend and an encrypted note
	// carrying the memo.
	BuildAction(recipient [43]byte, value uint64, memo []byte) (pczt.OrchardAction, error)

	// SignDummySpend produces the spend authorization signature for a
	// dummy spend.
	SignDummySpend(sk, alpha, sighash [32]byte) ([64]byte, error)

	// AddScalars adds two Pallas scalars; used to fold the per-action
	// rcv values into the binding signature key.
	AddScalars(a, b [32]byte) ([32]byte, error)

	// Prove produces the proof bytes covering the given actions.
	Prove(actions []pczt.OrchardAction) ([]byte, error)

	// SignBinding produces the binding signature over the transaction
	// sighash using the folded binding signature key.
	SignBinding(bsk, sighash [32]byte) ([64]byte, error)
}

// Prover wraps an Engine with the one-time context initialization. Inject
// one instance at startup and share it; the zero value is unusable.
type Prover struct {
	engine Engine

	once    sync.Once
	prepErr error
}

// New wraps an engine. The proving context is not built until the first
// operation that needs it.
func New(engine Engine) *Prover {
	return &Prover{engine: engine}
}

// Engine returns the wrapped engine for operations that do not need the
// proving context (action building, signing).
func (p *Prover) Engine() Engine {
	return p.engine
}

// Prove builds the proving context if necessary and generates the proof
// for the given actions. May take seconds to minutes; callers wanting a
// bound must cancel externally and abandon the PCZT afterwards.
func (p *Prover) Prove(actions []pczt.OrchardAction) ([]byte, error) {
	p.once.Do(func() {
		p.prepErr = p.engine.PrepareContext()
	})
	if p.prepErr != nil {
		return nil, fmt.Errorf("proving context unavailable: %w", p.prepErr)
	}
	return p.engine.Prove(actions)
}
