// Package api is the boundary layer of the pipeline. It exposes every
// stage over opaque handles with strict ownership: a handle passed to a
// consuming stage is invalid immediately after the call, success or
// failure. Callers that need to retry must serialize a checkpoint first.
//
// Fallible calls report a ResultCode plus a process-scoped last-error
// message retrievable through GetLastError.
package api

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/prover"
	"github.com/zclabs/zcash-pczt/pkg/roles"
	"github.com/zclabs/zcash-pczt/pkg/utxo"
	"github.com/zclabs/zcash-pczt/pkg/zip321"
)

// ResultCode is the outward error taxonomy, one bucket per stage.
type ResultCode int32

const (
	Success           ResultCode = 0
	ErrNullPointer    ResultCode = 1
	ErrBufferTooSmall ResultCode = 2
	ErrNoErrorSet     ResultCode = 3

	ErrProposal     ResultCode = 10
	ErrProof        ResultCode = 11
	ErrVerification ResultCode = 12
	ErrSighash      ResultCode = 13
	ErrSignature    ResultCode = 14
	ErrCombine      ResultCode = 15
	ErrFinalization ResultCode = 16
	ErrParse        ResultCode = 17
	ErrInputCodec   ResultCode = 18

	ErrNotImplemented ResultCode = 99
)

// PcztHandle owns an in-progress transaction. Exactly one live owner at
// a time: consuming stages tag the handle consumed before doing any work,
// so a failed call still invalidates it.
type PcztHandle struct {
	mu       sync.Mutex
	p        *pczt.PCZT
	consumed bool
}

// take consumes the handle, returning its PCZT or nil if the handle is
// nil, empty, or already consumed.
func (h *PcztHandle) take() *pczt.PCZT {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed || h.p == nil {
		return nil
	}
	h.consumed = true
	p := h.p
	h.p = nil
	return p
}

// borrow returns the PCZT without consuming, or nil if unavailable.
func (h *PcztHandle) borrow() *pczt.PCZT {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed {
		return nil
	}
	return h.p
}

func newHandle(p *pczt.PCZT) *PcztHandle {
	return &PcztHandle{p: p}
}

// Process-scoped last error. Overwritten by each failing call; cleared
// only implicitly by the next failure.
var lastError struct {
	sync.Mutex
	msg string
	set bool
}

func setLastError(err error) {
	lastError.Lock()
	defer lastError.Unlock()
	lastError.msg = err.Error()
	lastError.set = true
}

// GetLastError copies the last error message into buf and returns the
// number of bytes written. A too-small buffer returns the required size
// with ErrBufferTooSmall; if no call has failed yet the result is
// ErrNoErrorSet.
func GetLastError(buf []byte) (int, ResultCode) {
	lastError.Lock()
	defer lastError.Unlock()
	if !lastError.set {
		return 0, ErrNoErrorSet
	}
	if len(buf) < len(lastError.msg) {
		return len(lastError.msg), ErrBufferTooSmall
	}
	copy(buf, lastError.msg)
	return len(lastError.msg), Success
}

// The proving engine is injected once at startup; stages needing Orchard
// cryptography fail cleanly when none is set.
var (
	proverMu  sync.Mutex
	proverRef *prover.Prover
)

// SetEngine installs the proving engine. Call before the first stage that
// touches shielded outputs.
func SetEngine(e prover.Engine) {
	proverMu.Lock()
	defer proverMu.Unlock()
	proverRef = prover.New(e)
}

func currentProver() *prover.Prover {
	proverMu.Lock()
	defer proverMu.Unlock()
	return proverRef
}

func currentEngine() prover.Engine {
	if pv := currentProver(); pv != nil {
		return pv.Engine()
	}
	return nil
}

// classify maps a stage error onto the outward taxonomy.
func classify(err error) ResultCode {
	var proposalErr *pczt.ProposalError
	var proverErr *pczt.ProverError
	var verifyErr *pczt.VerificationFailure
	var sighashErr *pczt.SighashError
	var sigErr *pczt.SignatureError
	var combineErr *pczt.CombineError
	var finalErr *pczt.FinalizationError
	var parseErr *pczt.ParseError
	var codecErr *utxo.CodecError
	switch {
	case errors.As(err, &proposalErr):
		return ErrProposal
	case errors.As(err, &proverErr):
		return ErrProof
	case errors.As(err, &verifyErr):
		return ErrVerification
	case errors.As(err, &sighashErr):
		return ErrSighash
	case errors.As(err, &sigErr):
		return ErrSignature
	case errors.As(err, &combineErr):
		return ErrCombine
	case errors.As(err, &finalErr):
		return ErrFinalization
	case errors.As(err, &parseErr):
		return ErrParse
	case errors.As(err, &codecErr):
		return ErrInputCodec
	default:
		return ErrNotImplemented
	}
}

func fail(code ResultCode, err error) ResultCode {
	setLastError(err)
	return code
}

// ProposeTransaction builds a shape-locked PCZT from serialized
// transparent inputs (the utxo wire format) and a ZIP 321 payment URI. changeAddress may be empty, in which case change pays to
// the first input's key.
func ProposeTransaction(inputData []byte, uri, changeAddress string, mainnet bool, targetHeight uint32) (*PcztHandle, ResultCode) {
	inputs, err := utxo.Parse(inputData)
	if err != nil {
		return nil, fail(ErrInputCodec, err)
	}
	parsed, err := zip321.Parse(uri)
	if err != nil {
		return nil, fail(ErrProposal, &pczt.ProposalError{
			Code: pczt.ErrInvalidRequest, Message: "payment URI", Cause: err,
		})
	}
	req, err := parsed.ToRequest()
	if err != nil {
		return nil, fail(ErrProposal, &pczt.ProposalError{
			Code: pczt.ErrInvalidRequest, Message: "payment URI", Cause: err,
		})
	}
	req.SetUseMainnet(mainnet)
	req.SetTargetHeight(targetHeight)

	p, err := roles.BuildProposal(inputs, req, changeAddress, currentEngine())
	if err != nil {
		return nil, fail(classify(err), err)
	}
	return newHandle(p), Success
}

// ProveTransaction attaches the Orchard proof. Consumes the handle and
// returns a new one; proof failures are expensive to retry, so checkpoint
// with SerializePCZT first.
func ProveTransaction(h *PcztHandle) (*PcztHandle, ResultCode) {
	p := h.take()
	if p == nil {
		return nil, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	if err := roles.Prove(p, currentProver()); err != nil {
		return nil, fail(classify(err), err)
	}
	return newHandle(p), Success
}

// VerifyBeforeSigning checks the transaction against the original request
// and the caller's expected change. Consumes the handle; on success the
// verified PCZT comes back under a new handle.
func VerifyBeforeSigning(h *PcztHandle, uri string, mainnet bool, expectedChange []roles.ExpectedChange) (*PcztHandle, ResultCode) {
	p := h.take()
	if p == nil {
		return nil, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	parsed, err := zip321.Parse(uri)
	if err != nil {
		return nil, fail(ErrVerification, &pczt.VerificationFailure{
			Code: pczt.ErrOutputMismatch, Message: "payment URI does not parse",
		})
	}
	req, err := parsed.ToRequest()
	if err != nil {
		return nil, fail(ErrVerification, &pczt.VerificationFailure{
			Code: pczt.ErrOutputMismatch, Message: "payment URI is not a complete request",
		})
	}
	req.SetUseMainnet(mainnet)
	if err := roles.VerifyBeforeSigning(p, req, expectedChange); err != nil {
		return nil, fail(classify(err), err)
	}
	return newHandle(p), Success
}

// GetSighash computes the signature digest for one input. Read-only: the
// handle stays valid regardless of outcome.
func GetSighash(h *PcztHandle, inputIndex uint32) ([32]byte, ResultCode) {
	p := h.borrow()
	if p == nil {
		return [32]byte{}, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	digest, err := roles.Sighash(p, inputIndex)
	if err != nil {
		return [32]byte{}, fail(classify(err), err)
	}
	return digest, Success
}

// AppendSignature attaches a 64-byte compact signature to the given
// input. Always consumes the handle, success or failure.
func AppendSignature(h *PcztHandle, inputIndex uint32, signature [64]byte) (*PcztHandle, ResultCode) {
	p := h.take()
	if p == nil {
		return nil, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	if err := roles.AppendSignature(p, inputIndex, signature); err != nil {
		return nil, fail(classify(err), err)
	}
	return newHandle(p), Success
}

// Combine merges PCZTs signed in parallel. All handles are consumed,
// success or failure.
func Combine(handles []*PcztHandle) (*PcztHandle, ResultCode) {
	pczts := make([]*pczt.PCZT, 0, len(handles))
	var dead bool
	for _, h := range handles {
		p := h.take()
		if p == nil {
			dead = true
			continue
		}
		pczts = append(pczts, p)
	}
	if dead {
		return nil, fail(ErrNullPointer, fmt.Errorf("a pczt handle is nil or consumed"))
	}
	combined, err := roles.Combine(pczts)
	if err != nil {
		return nil, fail(classify(err), err)
	}
	return newHandle(combined), Success
}

// FinalizeAndExtract assembles the final scriptSigs and serializes the
// transaction for broadcast. Consumes the handle.
func FinalizeAndExtract(h *PcztHandle) ([]byte, ResultCode) {
	p := h.take()
	if p == nil {
		return nil, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	tx, err := roles.NewTxExtractor(p, currentEngine()).Extract()
	if err != nil {
		return nil, fail(classify(err), err)
	}
	return tx, Success
}

// SerializePCZT snapshots the handle's PCZT without consuming it. This is
// the checkpoint operation callers should use before risky calls.
func SerializePCZT(h *PcztHandle) ([]byte, ResultCode) {
	p := h.borrow()
	if p == nil {
		return nil, fail(ErrNullPointer, fmt.Errorf("pczt handle is nil or consumed"))
	}
	data, err := pczt.Serialize(p)
	if err != nil {
		return nil, fail(ErrParse, err)
	}
	return data, Success
}

// ParsePCZT restores a handle from serialized bytes.
func ParsePCZT(data []byte) (*PcztHandle, ResultCode) {
	p, err := pczt.Parse(data)
	if err != nil {
		return nil, fail(ErrParse, err)
	}
	return newHandle(p), Success
}
