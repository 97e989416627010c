package roles

import (
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
)

// Prove attaches the Orchard proof to the PCZT. A PCZT without actions
// passes through untouched; a PCZT with actions needs the proving
// context, which the Prover builds on first use and keeps for the life
// of the process.
func Prove(p *pczt.PCZT, pv *prover.Prover) error {
	if len(p.Orchard.Actions) == 0 {
		return nil
	}
	if pv == nil {
		return &pczt.ProverError{
			Code:    pczt.ErrOrchardProof,
			Message: "no prover configured",
		}
	}
	proof, err := pv.Prove(p.Orchard.Actions)
	if err != nil {
		return &pczt.ProverError{
			Code:    pczt.ErrOrchardProof,
			Message: "proof generation failed",
			Cause:   err,
		}
	}
	p.Orchard.ZkProof = proof
	return nil
}
