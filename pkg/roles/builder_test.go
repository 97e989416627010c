package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/request"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
)

func TestBuildProposalRejectsEmptyRequest(t *testing.T) {
	key := testKey(t, 0x01)
	inputs := []utxo.Input{testInput(t, key, 0x01, 0, 1_000_000)}

	_, err := BuildProposal(inputs, request.NewTransactionRequest(nil), "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInvalidRequest, propErr.Code)
}

func TestBuildProposalRejectsNoInputs(t *testing.T) {
	req, _ := singlePaymentRequest(t, 100_000)
	_, err := BuildProposal(nil, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInvalidRequest, propErr.Code)
}

func TestBuildProposalRejectsDuplicateOutpoint(t *testing.T) {
	key := testKey(t, 0x02)
	in := testInput(t, key, 0x02, 7, 1_000_000)
	req, _ := singlePaymentRequest(t, 100_000)

	_, err := BuildProposal([]utxo.Input{in, in}, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrPcztCreation, propErr.Code)
}

func TestBuildProposalRejectsZeroValuePayment(t *testing.T) {
	key := testKey(t, 0x03)
	inputs := []utxo.Input{testInput(t, key, 0x03, 0, 1_000_000)}
	addr, _ := paymentAddress(t, 0x10)
	req := request.NewTransactionRequest([]request.Payment{
		{Address: addr, Amount: 0},
	})

	_, err := BuildProposal(inputs, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrPcztCreation, propErr.Code)
}

func TestBuildProposalRejectsBadAddress(t *testing.T) {
	key := testKey(t, 0x04)
	inputs := []utxo.Input{testInput(t, key, 0x04, 0, 1_000_000)}
	req := request.NewTransactionRequest([]request.Payment{
		{Address: "not-an-address", Amount: 100_000},
	})

	_, err := BuildProposal(inputs, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInvalidAddress, propErr.Code)
}

func TestBuildProposalRejectsWrongNetworkAddress(t *testing.T) {
	key := testKey(t, 0x05)
	inputs := []utxo.Input{testInput(t, key, 0x05, 0, 1_000_000)}

	var hash [20]byte
	testnetAddr := address.EncodeTransparent(hash, false, false)
	req := request.NewTransactionRequest([]request.Payment{
		{Address: testnetAddr, Amount: 100_000},
	})
	// The request stays on mainnet, so the testnet address must not decode.
	_, err := BuildProposal(inputs, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInvalidAddress, propErr.Code)
}

func TestBuildProposalInsufficientFunds(t *testing.T) {
	key := testKey(t, 0x06)
	inputs := []utxo.Input{testInput(t, key, 0x06, 0, 50_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	_, err := BuildProposal(inputs, req, "", nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInsufficientFunds, propErr.Code)
}

func TestBuildProposalNoChangeWhenExact(t *testing.T) {
	key := testKey(t, 0x07)
	// Inputs cover payment plus estimated fee exactly, no change output.
	inputs := []utxo.Input{testInput(t, key, 0x07, 0, 110_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)
	assert.Len(t, p.Transparent.Outputs, 1)
}

func TestBuildProposalChangeToSuppliedAddress(t *testing.T) {
	key := testKey(t, 0x08)
	inputs := []utxo.Input{testInput(t, key, 0x08, 0, 100_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	changeAddr, changeScript := paymentAddress(t, 0x77)
	p, err := BuildProposal(inputs, req, changeAddr, nil)
	require.NoError(t, err)
	require.Len(t, p.Transparent.Outputs, 2)
	assert.Equal(t, changeScript, p.Transparent.Outputs[1].ScriptPubKey)
}

func TestBuildProposalChangeDerivedFromFirstInput(t *testing.T) {
	key := testKey(t, 0x09)
	inputs := []utxo.Input{testInput(t, key, 0x09, 0, 100_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)
	require.Len(t, p.Transparent.Outputs, 2)

	pubkey := key.PublicKey().SerializeCompressed()
	expected := address.P2PKHScript(crypto.Hash160(pubkey[:]))
	assert.Equal(t, expected, p.Transparent.Outputs[1].ScriptPubKey)
}

func TestBuildProposalRejectsShieldedChangeAddress(t *testing.T) {
	key := testKey(t, 0x0A)
	inputs := []utxo.Input{testInput(t, key, 0x0A, 0, 100_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	var orchard [43]byte
	orchard[0] = 1
	ua, err := address.EncodeUnified(orchard, true)
	require.NoError(t, err)

	_, err = BuildProposal(inputs, req, ua, nil)
	var propErr *pczt.ProposalError
	require.ErrorAs(t, err, &propErr)
	assert.Equal(t, pczt.ErrInvalidAddress, propErr.Code)
}

func TestBuildProposalPreservesRequestOrder(t *testing.T) {
	key := testKey(t, 0x0B)
	inputs := []utxo.Input{testInput(t, key, 0x0B, 0, 100_000_000)}

	addr1, script1 := paymentAddress(t, 0x21)
	addr2, script2 := paymentAddress(t, 0x22)
	req := request.NewTransactionRequest([]request.Payment{
		{Address: addr1, Amount: 200_000},
		{Address: addr2, Amount: 300_000},
	})

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)
	require.Len(t, p.Transparent.Outputs, 3)
	assert.Equal(t, script1, p.Transparent.Outputs[0].ScriptPubKey)
	assert.Equal(t, uint64(200_000), p.Transparent.Outputs[0].Value)
	assert.Equal(t, script2, p.Transparent.Outputs[1].ScriptPubKey)
	assert.Equal(t, uint64(300_000), p.Transparent.Outputs[1].Value)
}

func TestBuildProposalSetsConsensusGlobals(t *testing.T) {
	key := testKey(t, 0x0C)
	inputs := []utxo.Input{testInput(t, key, 0x0C, 0, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)
	req.SetTargetHeight(2_000_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)
	assert.Equal(t, pczt.V5TxVersion, p.Global.TxVersion)
	assert.Equal(t, pczt.V5VersionGroupID, p.Global.VersionGroupID)
	assert.Equal(t, request.NU5BranchID, p.Global.ConsensusBranchID)
	assert.Equal(t, uint32(2_000_040), p.Global.ExpiryHeight)
	assert.Equal(t, pczt.MainNetCoinType, p.Global.CoinType)
}
