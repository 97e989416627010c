// Package pczt models the Partially Constructed Zcash Transaction (ZIP 374)
// as it flows through the role pipeline: the Creator seeds the globals, the
// Constructor adds inputs and outputs, the Prover attaches proofs, Signers
// collect partial signatures, and the Transaction Extractor folds everything
// into final v5 transaction bytes.
//
// A PCZT is serializable at every stage, so callers can checkpoint before
// handing it to a consuming stage, ship it to another machine, or merge
// copies signed in parallel.
package pczt

// PCZT is an in-progress v5 transaction (PCZT version 1).
//
// Unlike the final transaction wire format, a PCZT carries the extra
// metadata later roles need: partial signatures keyed by pubkey, derivation
// paths, note plaintext material for the prover, and modifiability flags.
type PCZT struct {
	Global      Global
	Transparent TransparentBundle
	Sapling     SaplingBundle // carried empty; Sapling is not supported
	Orchard     OrchardBundle
}

// Global holds transaction-wide fields every party must agree on.
type Global struct {
	TxVersion         uint32
	VersionGroupID    uint32
	ConsensusBranchID uint32
	FallbackLockTime  *uint32 // nil means 0
	ExpiryHeight      uint32  // ZIP 203 expiry
	CoinType          uint32  // SLIP 44: 133 mainnet, 1 testnet
	TxModifiable      uint8
	Proprietary       map[string][]byte
}

// TxModifiable bitfield. Signers rely on these to know what later roles
// may still change underneath a signature.
const (
	FlagTransparentInputsModifiable  uint8 = 1 << 0
	FlagTransparentOutputsModifiable uint8 = 1 << 1
	FlagHasSighashSingle             uint8 = 1 << 2
	FlagShieldedModifiable           uint8 = 1 << 7
)

// TransparentBundle lists the coins being spent and created. Input order is
// fixed at proposal time; sighash and signature indices refer to it.
type TransparentBundle struct {
	Inputs  []TransparentInput
	Outputs []TransparentOutput
}

// TransparentInput is one UTXO being spent. The Constructor fills the
// prevout fields, Signers populate PartialSignatures, and the Spend
// Finalizer assembles ScriptSig from them.
type TransparentInput struct {
	Pubkey       [33]byte // compressed key the spend authorization is expected under
	PrevoutTxID  [32]byte
	PrevoutIndex uint32
	Value        uint64 // zatoshis
	ScriptPubKey []byte
	SighashType  uint8

	Sequence               *uint32 // nil means 0xffffffff
	RequiredTimeLockTime   *uint32
	RequiredHeightLockTime *uint32
	ScriptSig              []byte // set by the Spend Finalizer
	RedeemScript           []byte // P2SH only

	PartialSignatures map[[33]byte][]byte // pubkey -> DER signature || sighash type
	Bip32Derivation   map[[33]byte]Zip32Derivation

	// Preimages for scripts that hash-lock (OP_RIPEMD160 etc.).
	Ripemd160Preimages map[[20]byte][]byte
	Sha256Preimages    map[[32]byte][]byte
	Hash160Preimages   map[[20]byte][]byte
	Hash256Preimages   map[[32]byte][]byte
	Proprietary        map[string][]byte
}

// TransparentOutput is one UTXO being created.
type TransparentOutput struct {
	Value           uint64
	ScriptPubKey    []byte
	RedeemScript    []byte
	Bip32Derivation map[[33]byte]Zip32Derivation
	UserAddress     *string // human-readable form, for signer review
	Proprietary     map[string][]byte
}

// SaplingBundle is always empty here; the fields exist only so the wire
// format round-trips against encoders that emit the full structure.
type SaplingBundle struct {
	Spends   []interface{}
	Outputs  []interface{}
	ValueSum int64
	Anchor   [32]byte
	Bsk      *[32]byte
}

// OrchardBundle holds the shielded side of the transaction. Each action
// pairs one spend with one output; purely-sending transactions carry dummy
// spends so all actions look alike on chain.
type OrchardBundle struct {
	Actions    []OrchardAction
	Flags      uint8
	ValueSum   ValueBalance // consensus sign: positive moves value out of the pool
	Anchor     [32]byte
	ZkProof    []byte    // set by the Prover
	Bsk        *[32]byte // binding signature key, cleared before extraction
	BindingSig *[64]byte // set at extraction time
}

// OrchardAction is one spend/output pair.
type OrchardAction struct {
	CvNet  [32]byte // net value commitment
	Spend  OrchardSpend
	Output OrchardOutput
	Rcv    *[32]byte // value commitment randomness
}

// OrchardSpend is the note consumed by an action. For transparent-funded
// transactions this is a dummy: zero value, synthetic nullifier.
type OrchardSpend struct {
	Nullifier    [32]byte
	Rk           [32]byte
	SpendAuthSig *[64]byte

	Recipient       *[43]byte
	Value           *uint64
	Rho             *[32]byte
	Rseed           *[32]byte
	Fvk             *[96]byte
	Witness         *MerkleWitness
	Alpha           *[32]byte
	Zip32Derivation *Zip32Derivation
	DummySk         *[32]byte // cleared before extraction
	Proprietary     map[string][]byte
}

// OrchardOutput is the note created by an action. Recipient, Value and
// Rseed are needed by the Prover and may be redacted afterwards; the
// ciphertexts are what reaches the chain.
type OrchardOutput struct {
	Cmx           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext []byte // 580 bytes once filled
	OutCiphertext []byte // 80 bytes once filled

	Recipient *[43]byte
	Value     *uint64
	Rseed     *[32]byte

	Ock             *[32]byte
	Zip32Derivation *Zip32Derivation
	UserAddress     *string
	Proprietary     map[string][]byte
}

// ValueBalance is a sign/magnitude amount under the consensus
// valueBalanceOrchard convention: positive moves value out of the pool,
// so outputs into the pool make the sum negative.
type ValueBalance struct {
	Magnitude  uint64
	IsNegative bool
}

// MerkleWitness authenticates a note commitment against the global tree.
// Dummy spends never carry one.
type MerkleWitness struct {
	Position uint32
	Path     [32][32]byte
}

// Zip32Derivation records an HD derivation path (ZIP 32). Indices at or
// above 2^31 are hardened.
type Zip32Derivation struct {
	SeedFingerprint [32]byte
	DerivationPath  []uint32
}

const (
	V5TxVersion      uint32 = 5
	V5VersionGroupID uint32 = 0x26A7270A
	MainNetCoinType  uint32 = 133
	TestNetCoinType  uint32 = 1
)

// Signature hash flags (ZIP 244 carries the Bitcoin-derived semantics).
const (
	SighashAll             uint8 = 0x01
	SighashNone            uint8 = 0x02
	SighashSingle          uint8 = 0x03
	SighashAnyoneCanPay    uint8 = 0x80
	SighashAllAnyoneCanPay uint8 = SighashAll | SighashAnyoneCanPay
)

const (
	// OrchardFlagsEnabled enables both spends and outputs for the bundle.
	OrchardFlagsEnabled uint8 = 0b00000011
)

// NumOrchardActions reports the shielded-action count. It never decreases
// across stages.
func (p *PCZT) NumOrchardActions() int { return len(p.Orchard.Actions) }

// Clone returns a deep copy. Parallel signing works on clones of the same
// proposal; the Combiner merges them back together.
func (p *PCZT) Clone() (*PCZT, error) {
	data, err := Serialize(p)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
