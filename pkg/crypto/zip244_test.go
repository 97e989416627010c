package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

func testPCZT() *pczt.PCZT {
	return &pczt.PCZT{
		Global: pczt.Global{
			TxVersion:         pczt.V5TxVersion,
			VersionGroupID:    pczt.V5VersionGroupID,
			ConsensusBranchID: 0xC2D6D0B4,
			ExpiryHeight:      2_000_040,
			CoinType:          pczt.MainNetCoinType,
		},
		Transparent: pczt.TransparentBundle{
			Inputs: []pczt.TransparentInput{
				{
					PrevoutTxID:  [32]byte{0xAA, 0x01},
					PrevoutIndex: 0,
					Value:        100_000_000,
					ScriptPubKey: []byte{0x76, 0xA9, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 0x88, 0xAC},
					SighashType:  pczt.SighashAll,
				},
				{
					PrevoutTxID:  [32]byte{0xBB, 0x02},
					PrevoutIndex: 3,
					Value:        50_000_000,
					ScriptPubKey: []byte{0x76, 0xA9, 0x14, 20, 19, 18, 17, 16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0x88, 0xAC},
					SighashType:  pczt.SighashAll,
				},
			},
			Outputs: []pczt.TransparentOutput{
				{Value: 100_000, ScriptPubKey: []byte{0x76, 0xA9, 0x14, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 0x88, 0xAC}},
				{Value: 149_885_000, ScriptPubKey: []byte{0x76, 0xA9, 0x14, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 0x88, 0xAC}},
			},
		},
	}
}

func TestSignatureHashDeterministic(t *testing.T) {
	p := testPCZT()
	first, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		again, err := GetSignatureHash(p, 0, pczt.SighashAll)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSignatureHashDiffersPerInput(t *testing.T) {
	p := testPCZT()
	h0, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)
	h1, err := GetSignatureHash(p, 1, pczt.SighashAll)
	require.NoError(t, err)
	assert.NotEqual(t, h0, h1)
}

func TestSignatureHashCommitsToOutputs(t *testing.T) {
	p := testPCZT()
	before, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)

	p.Transparent.Outputs[0].Value++
	after, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestSignatureHashCommitsToBranchID(t *testing.T) {
	p := testPCZT()
	before, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)

	p.Global.ConsensusBranchID++
	after, err := GetSignatureHash(p, 0, pczt.SighashAll)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestSignatureHashInvalidIndex(t *testing.T) {
	p := testPCZT()
	_, err := GetSignatureHash(p, 2, pczt.SighashAll)
	require.Error(t, err)
}

// With ANYONECANPAY only the signing input is committed, so another
// input's prevout must not affect the digest.
func TestSignatureHashAnyoneCanPay(t *testing.T) {
	p := testPCZT()
	sighashType := pczt.SighashAllAnyoneCanPay
	p.Transparent.Inputs[0].SighashType = sighashType

	before, err := GetSignatureHash(p, 0, sighashType)
	require.NoError(t, err)

	p.Transparent.Inputs[1].PrevoutTxID[0] ^= 0xFF
	after, err := GetSignatureHash(p, 0, sighashType)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The same mutation must change a plain SIGHASH_ALL digest.
	p2 := testPCZT()
	allBefore, err := GetSignatureHash(p2, 0, pczt.SighashAll)
	require.NoError(t, err)
	p2.Transparent.Inputs[1].PrevoutTxID[0] ^= 0xFF
	allAfter, err := GetSignatureHash(p2, 0, pczt.SighashAll)
	require.NoError(t, err)
	assert.NotEqual(t, allBefore, allAfter)
}

func TestTxIDIgnoresSignatures(t *testing.T) {
	p := testPCZT()
	before, err := TxID(p)
	require.NoError(t, err)

	p.Transparent.Inputs[0].ScriptSig = []byte{0x47, 0x30, 0x44}
	after, err := TxID(p)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestShieldedSignatureHashStable(t *testing.T) {
	p := testPCZT()
	h1, err := GetShieldedSignatureHash(p)
	require.NoError(t, err)
	h2, err := GetShieldedSignatureHash(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// It commits to all transparent inputs even without a designated one.
	p.Transparent.Inputs[0].Value++
	h3, err := GetShieldedSignatureHash(p)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestParseV5RoundTripOfExtractedShape(t *testing.T) {
	// Hand-assembled minimal v5 transaction: one input, one output, no
	// shielded bundles.
	var raw []byte
	le32 := func(v uint32) []byte {
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	}
	raw = append(raw, le32(pczt.V5TxVersion|1<<31)...)
	raw = append(raw, le32(pczt.V5VersionGroupID)...)
	raw = append(raw, le32(0xC2D6D0B4)...)
	raw = append(raw, le32(0)...) // lock time
	raw = append(raw, le32(0)...) // expiry

	raw = append(raw, 0x01) // one input
	prevout := make([]byte, 32)
	prevout[0] = 0xAA
	raw = append(raw, prevout...)
	raw = append(raw, le32(1)...)          // vout
	raw = append(raw, 0x01, 0x51)          // scriptSig: OP_TRUE
	raw = append(raw, le32(0xFFFFFFFF)...) // sequence

	raw = append(raw, 0x01)                                       // one output
	raw = append(raw, []byte{0xA0, 0x86, 0x01, 0, 0, 0, 0, 0}...) // 100000
	raw = append(raw, 0x01, 0x51)                                 // script

	raw = append(raw, 0x00, 0x00) // empty sapling
	raw = append(raw, 0x00)       // empty orchard

	tx, err := ParseV5Transaction(raw)
	require.NoError(t, err)
	assert.Equal(t, pczt.V5TxVersion, tx.Version)
	require.Len(t, tx.Inputs, 1)
	assert.Equal(t, uint32(1), tx.Inputs[0].PrevoutIndex)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, uint64(100_000), tx.Outputs[0].Value)
	assert.Empty(t, tx.OrchardActions)

	_, err = ParseV5Transaction(raw[:len(raw)-1])
	assert.Error(t, err)
	_, err = ParseV5Transaction(append(raw, 0x00))
	assert.Error(t, err)
}

func TestHash160(t *testing.T) {
	// RIPEMD160(SHA256("")) is a fixed, well-known value.
	h := Hash160(nil)
	assert.Equal(t, [20]byte{
		0xb4, 0x72, 0xa2, 0x66, 0xd0, 0xbd, 0x89, 0xc1, 0x37, 0x06,
		0xa4, 0x13, 0x2c, 0xcf, 0xb1, 0x6f, 0x7c, 0x3b, 0x9f, 0xcb,
	}, h)
}
