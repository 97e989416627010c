package prover

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

func TestDevEngineBuildActionShape(t *testing.T) {
	var recipient [43]byte
	recipient[0] = 9

	action, err := DevEngine{}.BuildAction(recipient, 50_000, []byte("hello"))
	require.NoError(t, err)

	assert.Len(t, action.Output.EncCiphertext, 580)
	assert.Len(t, action.Output.OutCiphertext, 80)
	require.NotNil(t, action.Output.Recipient)
	assert.Equal(t, recipient, *action.Output.Recipient)
	require.NotNil(t, action.Output.Value)
	assert.Equal(t, uint64(50_000), *action.Output.Value)
	require.NotNil(t, action.Spend.DummySk)
	require.NotNil(t, action.Spend.Rho)
	assert.Equal(t, action.Spend.Nullifier, *action.Spend.Rho)
	require.NotNil(t, action.Rcv)
}

func TestDevEngineActionsAreUnlinkable(t *testing.T) {
	var recipient [43]byte
	a1, err := DevEngine{}.BuildAction(recipient, 1, nil)
	require.NoError(t, err)
	a2, err := DevEngine{}.BuildAction(recipient, 1, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a1.Spend.Nullifier, a2.Spend.Nullifier)
	assert.NotEqual(t, a1.Output.Cmx, a2.Output.Cmx)
	assert.NotEqual(t, a1.Output.EncCiphertext, a2.Output.EncCiphertext)
}

func TestDevEngineProveDeterministic(t *testing.T) {
	var recipient [43]byte
	action, err := DevEngine{}.BuildAction(recipient, 1, nil)
	require.NoError(t, err)

	p1, err := DevEngine{}.Prove([]pczt.OrchardAction{action})
	require.NoError(t, err)
	p2, err := DevEngine{}.Prove([]pczt.OrchardAction{action})
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Len(t, p1, 2720)

	_, err = DevEngine{}.Prove(nil)
	require.Error(t, err)
}

func TestDevEngineAddScalars(t *testing.T) {
	e := DevEngine{}

	a := [32]byte{1}
	b := [32]byte{2}
	sum, err := e.AddScalars(a, b)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{3}, sum)

	// Commutative with zero identity.
	ba, err := e.AddScalars(b, a)
	require.NoError(t, err)
	assert.Equal(t, sum, ba)
	same, err := e.AddScalars(a, [32]byte{})
	require.NoError(t, err)
	assert.Equal(t, a, same)

	// Carry across word boundaries.
	var max8 [32]byte
	for i := 0; i < 8; i++ {
		max8[i] = 0xFF
	}
	carried, err := e.AddScalars(max8, [32]byte{1})
	require.NoError(t, err)
	var want [32]byte
	want[8] = 1
	assert.Equal(t, want, carried)
}

func TestDevEngineSignaturesAreRebindable(t *testing.T) {
	e := DevEngine{}
	sk := [32]byte{1}
	alpha := [32]byte{2}

	s1, err := e.SignDummySpend(sk, alpha, [32]byte{3})
	require.NoError(t, err)
	s2, err := e.SignDummySpend(sk, alpha, [32]byte{3})
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	s3, err := e.SignDummySpend(sk, alpha, [32]byte{4})
	require.NoError(t, err)
	assert.NotEqual(t, s1, s3)
}

// failingEngine fails context preparation to exercise the once-only wrapper.
type failingEngine struct {
	DevEngine
	calls int
}

func (f *failingEngine) PrepareContext() error {
	f.calls++
	return fmt.Errorf("context build failed")
}

func TestProverBuildsContextOnce(t *testing.T) {
	fe := &failingEngine{}
	pv := New(fe)

	var recipient [43]byte
	action, err := DevEngine{}.BuildAction(recipient, 1, nil)
	require.NoError(t, err)

	_, err = pv.Prove([]pczt.OrchardAction{action})
	require.Error(t, err)
	_, err = pv.Prove([]pczt.OrchardAction{action})
	require.Error(t, err)
	assert.Equal(t, 1, fe.calls)
}

func TestProverProve(t *testing.T) {
	pv := New(DevEngine{})
	var recipient [43]byte
	action, err := DevEngine{}.BuildAction(recipient, 1, nil)
	require.NoError(t, err)

	proof, err := pv.Prove([]pczt.OrchardAction{action})
	require.NoError(t, err)
	assert.Len(t, proof, 2720)
	assert.IsType(t, DevEngine{}, pv.Engine())
}
