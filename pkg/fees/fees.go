// Package fees computes the conventional proportional fee (ZIP 317) from
// a transaction's shape.
package fees

// MarginalFee is the per-logical-action fee in zatoshis.
const MarginalFee uint64 = 5000

// GraceActions is the minimum billed action count; two-action
// transactions pay the 10,000 zatoshi floor.
const GraceActions uint64 = 2

// Calculate returns the fee for a transaction with the given transparent
// input/output counts and shielded output count. Shielded outputs are
// padded to an even action count. Pure and total.
//
// The Builder must call this with the exact counts it ultimately
// produces, change output included, or the built transaction's actual
// fee diverges from the estimate.
//
//	Calculate(1, 2, 0) == 10_000
//	Calculate(1, 1, 1) == 15_000
func Calculate(nIn, nOut, nShieldedOut uint64) uint64 {
	logical := nIn
	if nOut > logical {
		logical = nOut
	}
	if nShieldedOut > 0 {
		logical += PaddedActions(nShieldedOut)
	}
	if logical < GraceActions {
		logical = GraceActions
	}
	return MarginalFee * logical
}

// PaddedActions rounds a shielded output count up to the even action
// count the bundle will actually carry.
func PaddedActions(nShieldedOut uint64) uint64 {
	return (nShieldedOut + 1) / 2 * 2
}
