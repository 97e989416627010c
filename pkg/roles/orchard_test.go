package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
	"github.com/zclabs/zcash-pczt/pkg/request"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
)

func unifiedAddress(t *testing.T, fill byte) string {
	t.Helper()
	var orchard [43]byte
	for i := range orchard {
		orchard[i] = fill
	}
	ua, err := address.EncodeUnified(orchard, true)
	require.NoError(t, err)
	return ua
}

func TestBuildProposalWithShieldedPayment(t *testing.T) {
	key := testKey(t, 0xF0)
	inputs := []utxo.Input{testInput(t, key, 0xF0, 0, 100_000_000)}
	payment, err := request.NewPayment(unifiedAddress(t, 0x5A), 100_000, []byte("memo"))
	require.NoError(t, err)
	req := request.NewTransactionRequest([]request.Payment{payment})

	p, err := BuildProposal(inputs, req, "", prover.DevEngine{})
	require.NoError(t, err)

	// One shielded action, one change output; fee bills one padded pair.
	require.Len(t, p.Orchard.Actions, 1)
	require.Len(t, p.Transparent.Outputs, 1)
	// Calculate(1, 1, 1) = 15,000 with the padded pair.
	assert.Equal(t, uint64(100_000_000-100_000-15_000), p.Transparent.Outputs[0].Value)

	// Shape is locked: bsk folded, dummy spends signed, secrets dropped.
	assert.Equal(t, uint8(0), p.Global.TxModifiable)
	require.NotNil(t, p.Orchard.Bsk)
	action := &p.Orchard.Actions[0]
	assert.NotNil(t, action.Spend.SpendAuthSig)
	assert.Nil(t, action.Spend.DummySk)
	assert.True(t, p.Orchard.ValueSum.IsNegative)
	assert.Equal(t, uint64(100_000), p.Orchard.ValueSum.Magnitude)
}

func TestBuildProposalShieldedRequiresEngine(t *testing.T) {
	key := testKey(t, 0xF1)
	inputs := []utxo.Input{testInput(t, key, 0xF1, 0, 100_000_000)}
	payment, err := request.NewPayment(unifiedAddress(t, 0x5B), 100_000, nil)
	require.NoError(t, err)
	req := request.NewTransactionRequest([]request.Payment{payment})

	_, err = BuildProposal(inputs, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrPcztCreation, propErr.Code)
}

func TestProvePassesThroughWithoutActions(t *testing.T) {
	p, _ := builtProposal(t, 100_000)
	require.NoError(t, Prove(p, nil))
	assert.Nil(t, p.Orchard.ZkProof)
}

func TestShieldedEndToEnd(t *testing.T) {
	engine := prover.DevEngine{}
	pv := prover.New(engine)

	key := testKey(t, 0xF2)
	inputs := []utxo.Input{testInput(t, key, 0xF2, 0, 100_000_000)}
	payment, err := request.NewPayment(unifiedAddress(t, 0x5C), 200_000, []byte("shielded memo"))
	require.NoError(t, err)
	req := request.NewTransactionRequest([]request.Payment{payment})

	p, err := BuildProposal(inputs, req, "", engine)
	require.NoError(t, err)

	require.NoError(t, Prove(p, pv))
	require.NotEmpty(t, p.Orchard.ZkProof)

	require.NoError(t, VerifyBeforeSigning(p, req, ChangeOutputs(p, req)))

	sighash, err := Sighash(p, 0)
	require.NoError(t, err)
	require.NoError(t, AppendSignature(p, 0, key.SignCompact(sighash)))

	tx, err := NewTxExtractor(p, engine).Extract()
	require.NoError(t, err)
	require.NotEmpty(t, tx)
	assert.Nil(t, p.Orchard.Bsk)
	require.NotNil(t, p.Orchard.BindingSig)
}

func TestVerifyShieldedPresence(t *testing.T) {
	key := testKey(t, 0xF3)
	inputs := []utxo.Input{testInput(t, key, 0xF3, 0, 100_000_000)}
	payment, err := request.NewPayment(unifiedAddress(t, 0x5D), 100_000, nil)
	require.NoError(t, err)
	req := request.NewTransactionRequest([]request.Payment{payment})

	p, err := BuildProposal(inputs, req, "", prover.DevEngine{})
	require.NoError(t, err)

	// Strip the action: verification must notice the shielded payment
	// has nowhere to go.
	p.Orchard.Actions = nil
	err = VerifyBeforeSigning(p, req, nil)
	var failure *pczt.VerificationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, pczt.ErrOutputMismatch, failure.Code)
}
