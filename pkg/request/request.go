// Package request models the payment request that drives proposal building:
// an ordered list of payments plus the network and target-height settings
// that select consensus parameters and transaction expiry.
package request

import (
	"fmt"

	"github.com/zclabs/zcash-pczt/pkg/address"
	"github.com/zclabs/zcash-pczt/pkg/pczt"
)

// Payment is a single requested output. Immutable once constructed.
type Payment struct {
	Address string
	Amount  uint64 // zatoshis
	Memo    []byte // shielded recipients only
	Label   string
	Message string
}

// NewPayment validates and builds a Payment. Memos are limited to the
// 512-byte note plaintext field.
func NewPayment(address string, amount uint64, memo []byte) (Payment, error) {
	if address == "" {
		return Payment{}, fmt.Errorf("payment address is empty")
	}
	if len(memo) > 512 {
		return Payment{}, fmt.Errorf("memo exceeds 512 bytes: %d", len(memo))
	}
	return Payment{Address: address, Amount: amount, Memo: memo}, nil
}

// TransactionRequest is the caller's statement of intent: who gets paid,
// on which network, and by when the transaction must confirm. It is
// mutated only through the explicit setters, before proposal time.
type TransactionRequest struct {
	Payments     []Payment
	TargetHeight uint32 // 0 means unset; expiry falls back to no expiry
	Mainnet      bool
}

// NewTransactionRequest builds a mainnet request. The payment list may be
// assembled afterwards but must be non-empty by proposal time.
func NewTransactionRequest(payments []Payment) *TransactionRequest {
	return &TransactionRequest{Payments: payments, Mainnet: true}
}

// AddPayment appends a payment, preserving request order.
func (r *TransactionRequest) AddPayment(p Payment) {
	r.Payments = append(r.Payments, p)
}

// SetTargetHeight sets the block height the transaction aims to confirm
// at. Expiry is derived from it.
func (r *TransactionRequest) SetTargetHeight(height uint32) {
	r.TargetHeight = height
}

// SetUseMainnet selects mainnet or testnet consensus parameters.
func (r *TransactionRequest) SetUseMainnet(mainnet bool) {
	r.Mainnet = mainnet
}

// TotalAmount sums the requested payment amounts.
func (r *TransactionRequest) TotalAmount() uint64 {
	var total uint64
	for _, p := range r.Payments {
		total += p.Amount
	}
	return total
}

// RequiresShielded reports whether any payment decodes to a
// shielded-capable address on the request's network.
func (r *TransactionRequest) RequiresShielded() bool {
	for _, p := range r.Payments {
		if address.Classify(p.Address, r.Mainnet).Kind == address.KindShieldedCapable {
			return true
		}
	}
	return false
}

// Consensus parameters. NU5 is the active network upgrade on both
// networks at the heights this library targets.
const (
	NU5BranchID uint32 = 0xC2D6D0B4

	// ExpiryDelta is the number of blocks past the target height before
	// the transaction expires (ZIP 203).
	ExpiryDelta uint32 = 40
)

// Params are the consensus values a request resolves to.
type Params struct {
	ConsensusBranchID uint32
	CoinType          uint32
	ExpiryHeight      uint32
}

// ConsensusParams resolves the request's network and target height into
// concrete transaction globals. A zero target height yields zero expiry,
// meaning the transaction never expires.
func (r *TransactionRequest) ConsensusParams() Params {
	coinType := pczt.TestNetCoinType
	if r.Mainnet {
		coinType = pczt.MainNetCoinType
	}
	var expiry uint32
	if r.TargetHeight > 0 {
		expiry = r.TargetHeight + ExpiryDelta
	}
	return Params{
		ConsensusBranchID: NU5BranchID,
		CoinType:          coinType,
		ExpiryHeight:      expiry,
	}
}
