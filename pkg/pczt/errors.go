package pczt

import "fmt"

// Errors are scoped per pipeline stage and never coerced across stages;
// the boundary layer in pkg/api maps each type onto its outward result
// code. Every consuming-stage failure leaves the input PCZT unusable, so
// callers should checkpoint (Serialize) before risky calls.

// ProposalError is returned when proposal building fails, covering the
// Creator, Constructor and IO Finalizer roles.
type ProposalError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ProposalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proposal error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("proposal error [%s]: %s", e.Code, e.Message)
}

func (e *ProposalError) Unwrap() error { return e.Cause }

// Proposal failure codes.
const (
	ErrInvalidRequest    = "INVALID_REQUEST"    // empty payment list, zero-value payment
	ErrInvalidAddress    = "INVALID_ADDRESS"    // address failed classification
	ErrPcztCreation      = "PCZT_CREATION"      // rejected shape: duplicate inputs, zero-value output
	ErrInsufficientFunds = "INSUFFICIENT_FUNDS" // inputs do not cover outputs plus fee
)

// ProverError is returned when proof attachment fails. Proofs are the most
// expensive stage to retry.
type ProverError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ProverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prover error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("prover error [%s]: %s", e.Code, e.Message)
}

func (e *ProverError) Unwrap() error { return e.Cause }

const (
	ErrOrchardProof = "ORCHARD_PROOF" // the proving engine rejected the actions
)

// VerificationFailure is returned when a PCZT's observable outputs do not
// match the original request and the caller-declared expected change.
type VerificationFailure struct {
	Code    string
	Message string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("verification failed [%s]: %s", e.Code, e.Message)
}

// Verification failure codes.
const (
	ErrChangeMismatch = "CHANGE_MISMATCH" // change outputs disagree with expectations
	ErrOutputMismatch = "OUTPUT_MISMATCH" // a requested payment is missing or altered
	ErrInvalidFee     = "INVALID_FEE"     // implied fee outside the accepted bound
)

// SighashError is returned when the signature hash for a transparent input
// cannot be computed.
type SighashError struct {
	InputIndex uint32
	Message    string
	Cause      error
}

func (e *SighashError) Error() string {
	return fmt.Sprintf("sighash error at input %d: %s", e.InputIndex, e.Message)
}

func (e *SighashError) Unwrap() error { return e.Cause }

// SignatureError is returned when a signature cannot be appended.
type SignatureError struct {
	Code       string
	InputIndex uint32
	Message    string
	Cause      error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error [%s] at input %d: %s", e.Code, e.InputIndex, e.Message)
}

func (e *SignatureError) Unwrap() error { return e.Cause }

// Signature and sighash failure codes.
const (
	ErrInvalidInputIndex  = "INVALID_INPUT_INDEX"
	ErrInvalidFormat      = "INVALID_FORMAT"      // not a decodable 64-byte compact signature
	ErrVerificationFailed = "VERIFICATION_FAILED" // signature does not verify against sighash and key
)

// CombineError is returned when merging parallel PCZT copies fails.
type CombineError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CombineError) Error() string {
	return fmt.Sprintf("combine error [%s]: %s", e.Code, e.Message)
}

func (e *CombineError) Unwrap() error { return e.Cause }

const (
	ErrNoPczts      = "NO_PCZTS"      // nothing to combine
	ErrDataMismatch = "DATA_MISMATCH" // inputs do not describe the same transaction
)

// FinalizationError is returned by the Spend Finalizer or Transaction
// Extractor.
type FinalizationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *FinalizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("finalization error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("finalization error [%s]: %s", e.Code, e.Message)
}

func (e *FinalizationError) Unwrap() error { return e.Cause }

const (
	ErrSpendFinalization     = "SPEND_FINALIZATION"     // an input lacks a usable signature
	ErrTransactionExtraction = "TRANSACTION_EXTRACTION" // structural defect at assembly
	ErrSerialization         = "SERIALIZATION"
)

// ParseError is returned when PCZT bytes cannot be decoded: wrong magic,
// unsupported version, or a malformed body. The message names the field
// that failed.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }
