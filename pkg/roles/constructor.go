package roles

import (
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
)

// Constructor adds spends and outputs to a PCZT while the corresponding
// modifiable flags are still set. Orchard actions are assembled by the
// proving engine since they require Pallas-curve arithmetic and note
// encryption.
type Constructor struct {
	pczt   *pczt.PCZT
	engine prover.Engine
}

// NewConstructor wraps a PCZT for modification. engine may be nil for
// transparent-only construction.
func NewConstructor(p *pczt.PCZT, engine prover.Engine) *Constructor {
	return &Constructor{pczt: p, engine: engine}
}

// AddTransparentInput appends a transparent spend. The input carries the
// pubkey the signature is expected under; its sighash type defaults to
// SIGHASH_ALL.
func (c *Constructor) AddTransparentInput(in utxo.Input) error {
	if c.pczt.Global.TxModifiable&pczt.FlagTransparentInputsModifiable == 0 {
		return fmt.Errorf("transparent inputs are no longer modifiable")
	}

	script := make([]byte, len(in.ScriptPubKey))
	copy(script, in.ScriptPubKey)

	c.pczt.Transparent.Inputs = append(c.pczt.Transparent.Inputs, pczt.TransparentInput{
		Pubkey:             in.Pubkey,
		PrevoutTxID:        in.TxID,
		PrevoutIndex:       in.Vout,
		Value:              in.Amount,
		ScriptPubKey:       script,
		SighashType:        pczt.SighashAll,
		PartialSignatures:  map[[33]byte][]byte{},
		Bip32Derivation:    map[[33]byte]pczt.Zip32Derivation{},
		Ripemd160Preimages: map[[20]byte][]byte{},
		Sha256Preimages:    map[[32]byte][]byte{},
		Hash160Preimages:   map[[20]byte][]byte{},
		Hash256Preimages:   map[[32]byte][]byte{},
		Proprietary:        map[string][]byte{},
	})
	return nil
}

// AddTransparentOutput appends a transparent output paying value to the
// given scriptPubKey.
func (c *Constructor) AddTransparentOutput(value uint64, scriptPubKey []byte) error {
	if c.pczt.Global.TxModifiable&pczt.FlagTransparentOutputsModifiable == 0 {
		return fmt.Errorf("transparent outputs are no longer modifiable")
	}

	script := make([]byte, len(scriptPubKey))
	copy(script, scriptPubKey)

	c.pczt.Transparent.Outputs = append(c.pczt.Transparent.Outputs, pczt.TransparentOutput{
		Value:           value,
		ScriptPubKey:    script,
		Bip32Derivation: map[[33]byte]pczt.Zip32Derivation{},
		Proprietary:     map[string][]byte{},
	})
	return nil
}

// AddOrchardOutput appends a shielded action paying value to the given
// raw Orchard receiver. The action pairs the new note with a dummy spend
// so that spends and outputs stay balanced per action.
func (c *Constructor) AddOrchardOutput(recipient [43]byte, value uint64, memo []byte) error {
	if c.pczt.Global.TxModifiable&pczt.FlagShieldedModifiable == 0 {
		return fmt.Errorf("shielded bundle is no longer modifiable")
	}
	if c.engine == nil {
		return fmt.Errorf("no proving engine configured for shielded outputs")
	}

	action, err := c.engine.BuildAction(recipient, value, memo)
	if err != nil {
		return fmt.Errorf("build action: %w", err)
	}

	c.pczt.Orchard.Actions = append(c.pczt.Orchard.Actions, action)
	// A new note moves value into the pool, which is negative under the
	// consensus sign convention.
	c.pczt.Orchard.ValueSum.Magnitude += value
	c.pczt.Orchard.ValueSum.IsNegative = true
	return nil
}

// Finish returns the PCZT for the next stage.
func (c *Constructor) Finish() *pczt.PCZT {
	return c.pczt
}
