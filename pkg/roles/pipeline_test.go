package roles

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/request"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
)

// testKey returns a deterministic private key for fixtures.
func testKey(t *testing.T, fill byte) *crypto.PrivateKey {
	t.Helper()
	keyBytes := make([]byte, 32)
	for i := range keyBytes {
		keyBytes[i] = fill
	}
	keyBytes[31] = 1 // stay well inside the curve order
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	require.NoError(t, err)
	return key
}

// testInput builds a spendable P2PKH input locked to the key.
func testInput(t *testing.T, key *crypto.PrivateKey, txidFill byte, vout uint32, amount uint64) utxo.Input {
	t.Helper()
	pubkey := key.PublicKey().SerializeCompressed()
	script := address.P2PKHScript(crypto.Hash160(pubkey[:]))
	var txid [32]byte
	txid[0] = txidFill
	in, err := utxo.NewInput(pubkey[:], txid, vout, amount, script)
	require.NoError(t, err)
	return in
}

// paymentAddress derives a mainnet t-addr unrelated to the inputs.
func paymentAddress(t *testing.T, fill byte) (string, []byte) {
	t.Helper()
	var hash [20]byte
	for i := range hash {
		hash[i] = fill
	}
	addr := address.EncodeTransparent(hash, false, true)
	return addr, address.P2PKHScript(hash)
}

func singlePaymentRequest(t *testing.T, amount uint64) (*request.TransactionRequest, []byte) {
	t.Helper()
	addr, script := paymentAddress(t, 0x42)
	payment, err := request.NewPayment(addr, amount, nil)
	require.NoError(t, err)
	return request.NewTransactionRequest([]request.Payment{payment}), script
}

func TestEndToEndTransparent(t *testing.T) {
	key := testKey(t, 0x11)
	inputs := []utxo.Input{testInput(t, key, 0xAA, 0, 100_000_000)}
	req, payScript := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	// One payment output plus change; fee 10,000 at two logical actions.
	require.Len(t, p.Transparent.Outputs, 2)
	assert.Equal(t, uint64(100_000), p.Transparent.Outputs[0].Value)
	assert.Equal(t, payScript, p.Transparent.Outputs[0].ScriptPubKey)
	assert.Equal(t, uint64(99_890_000), p.Transparent.Outputs[1].Value)
	assert.Equal(t, uint8(0), p.Global.TxModifiable)

	// A freshly built proposal verifies against its own request.
	require.NoError(t, VerifyBeforeSigning(p, req, nil))
	require.NoError(t, VerifyBeforeSigning(p, req, ChangeOutputs(p, req)))

	// Sign input 0 with a compact signature over the sighash.
	sighash, err := Sighash(p, 0)
	require.NoError(t, err)
	sig := key.SignCompact(sighash)
	require.NoError(t, AppendSignature(p, 0, sig))
	require.Len(t, p.Transparent.Inputs[0].PartialSignatures, 1)

	// Combining a single PCZT is the identity.
	before, err := pczt.Serialize(p)
	require.NoError(t, err)
	combined, err := Combine([]*pczt.PCZT{p})
	require.NoError(t, err)
	after, err := pczt.Serialize(combined)
	require.NoError(t, err)
	require.True(t, bytes.Equal(before, after))

	// Extract and parse back.
	tx, err := NewTxExtractor(combined, nil).Extract()
	require.NoError(t, err)
	require.NotEmpty(t, tx)

	parsed, err := crypto.ParseV5Transaction(tx)
	require.NoError(t, err)
	require.Len(t, parsed.Inputs, 1)
	require.Len(t, parsed.Outputs, 2)
	assert.Equal(t, uint64(100_000), parsed.Outputs[0].Value)
	assert.Equal(t, uint64(99_890_000), parsed.Outputs[1].Value)
	assert.NotEmpty(t, parsed.Inputs[0].ScriptSig)
	assert.Empty(t, parsed.OrchardActions)
}

func TestSignedTransactionVerifies(t *testing.T) {
	key := testKey(t, 0x22)
	inputs := []utxo.Input{testInput(t, key, 0xAB, 1, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	sighash, err := Sighash(p, 0)
	require.NoError(t, err)
	sig := key.SignCompact(sighash)
	require.NoError(t, AppendSignature(p, 0, sig))

	// The stored signature is DER plus the sighash type byte and
	// verifies against the input pubkey.
	pubkey := key.PublicKey().SerializeCompressed()
	stored := p.Transparent.Inputs[0].PartialSignatures[pubkey]
	require.NotEmpty(t, stored)
	assert.Equal(t, pczt.SighashAll, stored[len(stored)-1])
	pub, err := crypto.ParsePublicKey(pubkey[:])
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(pub, sighash, stored[:len(stored)-1]))
}

func TestAppendSignatureInvalidIndex(t *testing.T) {
	key := testKey(t, 0x33)
	inputs := []utxo.Input{testInput(t, key, 0xAC, 0, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	checkpoint, err := pczt.Serialize(p)
	require.NoError(t, err)

	var sig [64]byte
	err = AppendSignature(p, 5, sig)
	var sigErr *pczt.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, pczt.ErrInvalidInputIndex, sigErr.Code)

	// A fresh parse of the pre-call checkpoint is unaffected.
	restored, err := pczt.Parse(checkpoint)
	require.NoError(t, err)
	again, err := pczt.Serialize(restored)
	require.NoError(t, err)
	assert.Equal(t, checkpoint, again)
}

func TestAppendSignatureRejectsWrongKey(t *testing.T) {
	key := testKey(t, 0x44)
	wrongKey := testKey(t, 0x55)
	inputs := []utxo.Input{testInput(t, key, 0xAD, 0, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	sighash, err := Sighash(p, 0)
	require.NoError(t, err)
	err = AppendSignature(p, 0, wrongKey.SignCompact(sighash))
	var sigErr *pczt.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, pczt.ErrVerificationFailed, sigErr.Code)
}

func TestAppendSignatureRejectsGarbage(t *testing.T) {
	key := testKey(t, 0x66)
	inputs := []utxo.Input{testInput(t, key, 0xAE, 0, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	// All-zero r and s can never be a valid signature.
	var sig [64]byte
	err = AppendSignature(p, 0, sig)
	var sigErr *pczt.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, pczt.ErrInvalidFormat, sigErr.Code)
}

func TestExtractRequiresSignatures(t *testing.T) {
	key := testKey(t, 0x77)
	inputs := []utxo.Input{testInput(t, key, 0xAF, 0, 1_000_000)}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	_, err = NewTxExtractor(p, nil).Extract()
	var finalErr *pczt.FinalizationError
	require.ErrorAs(t, err, &finalErr)
}

func TestSighashStableAcrossCopies(t *testing.T) {
	key := testKey(t, 0x88)
	inputs := []utxo.Input{
		testInput(t, key, 0xB0, 0, 600_000),
		testInput(t, key, 0xB1, 1, 600_000),
	}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	clone, err := p.Clone()
	require.NoError(t, err)

	for idx := uint32(0); idx < 2; idx++ {
		h1, err := Sighash(p, idx)
		require.NoError(t, err)
		h2, err := Sighash(clone, idx)
		require.NoError(t, err)
		assert.Equal(t, h1, h2, "input %d", idx)
	}
}

func TestParallelSigningThenCombine(t *testing.T) {
	keyA := testKey(t, 0x99)
	keyB := testKey(t, 0x9A)
	inputs := []utxo.Input{
		testInput(t, keyA, 0xC0, 0, 600_000),
		testInput(t, keyB, 0xC1, 0, 600_000),
	}
	req, _ := singlePaymentRequest(t, 100_000)

	p, err := BuildProposal(inputs, req, "", nil)
	require.NoError(t, err)

	copyA, err := p.Clone()
	require.NoError(t, err)
	copyB, err := p.Clone()
	require.NoError(t, err)

	hashA, err := Sighash(copyA, 0)
	require.NoError(t, err)
	require.NoError(t, AppendSignature(copyA, 0, keyA.SignCompact(hashA)))

	hashB, err := Sighash(copyB, 1)
	require.NoError(t, err)
	require.NoError(t, AppendSignature(copyB, 1, keyB.SignCompact(hashB)))

	combined, err := Combine([]*pczt.PCZT{copyA, copyB})
	require.NoError(t, err)
	assert.Len(t, combined.Transparent.Inputs[0].PartialSignatures, 1)
	assert.Len(t, combined.Transparent.Inputs[1].PartialSignatures, 1)

	tx, err := NewTxExtractor(combined, nil).Extract()
	require.NoError(t, err)
	assert.NotEmpty(t, tx)
}

func TestCombineRejectsEmpty(t *testing.T) {
	_, err := Combine(nil)
	var combineErr *pczt.CombineError
	require.ErrorAs(t, err, &combineErr)
	assert.Equal(t, pczt.ErrNoPczts, combineErr.Code)
}

func TestCombineRejectsDifferentTransactions(t *testing.T) {
	key := testKey(t, 0xAB)
	req, _ := singlePaymentRequest(t, 100_000)

	p1, err := BuildProposal([]utxo.Input{testInput(t, key, 0xD0, 0, 1_000_000)}, req, "", nil)
	require.NoError(t, err)
	p2, err := BuildProposal([]utxo.Input{testInput(t, key, 0xD1, 0, 1_000_000)}, req, "", nil)
	require.NoError(t, err)

	_, err = Combine([]*pczt.PCZT{p1, p2})
	var combineErr *pczt.CombineError
	require.ErrorAs(t, err, &combineErr)
	assert.Equal(t, pczt.ErrDataMismatch, combineErr.Code)
}
