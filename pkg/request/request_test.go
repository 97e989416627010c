package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

func TestNewPayment(t *testing.T) {
	p, err := NewPayment("t1abc", 1000, []byte("memo"))
	require.NoError(t, err)
	assert.Equal(t, "t1abc", p.Address)
	assert.Equal(t, uint64(1000), p.Amount)

	_, err = NewPayment("", 1000, nil)
	require.Error(t, err)

	_, err = NewPayment("t1abc", 1, make([]byte, 513))
	require.Error(t, err)

	_, err = NewPayment("t1abc", 1, make([]byte, 512))
	require.NoError(t, err)
}

func TestTotalAmount(t *testing.T) {
	p1, _ := NewPayment("a", 100, nil)
	p2, _ := NewPayment("b", 250, nil)
	req := NewTransactionRequest([]Payment{p1})
	req.AddPayment(p2)
	assert.Equal(t, uint64(350), req.TotalAmount())
}

func TestRequiresShielded(t *testing.T) {
	tAddr := address.EncodeTransparent([20]byte{1}, false, true)
	ua, err := address.EncodeUnified([43]byte{2}, true)
	require.NoError(t, err)

	p1, _ := NewPayment(tAddr, 100, nil)
	req := NewTransactionRequest([]Payment{p1})
	assert.False(t, req.RequiresShielded())

	p2, _ := NewPayment(ua, 100, nil)
	req.AddPayment(p2)
	assert.True(t, req.RequiresShielded())
}

func TestConsensusParams(t *testing.T) {
	req := NewTransactionRequest(nil)
	assert.True(t, req.Mainnet)

	params := req.ConsensusParams()
	assert.Equal(t, NU5BranchID, params.ConsensusBranchID)
	assert.Equal(t, pczt.MainNetCoinType, params.CoinType)
	assert.Zero(t, params.ExpiryHeight)

	req.SetUseMainnet(false)
	req.SetTargetHeight(2_500_000)
	params = req.ConsensusParams()
	assert.Equal(t, pczt.TestNetCoinType, params.CoinType)
	assert.Equal(t, uint32(2_500_000+ExpiryDelta), params.ExpiryHeight)
}
