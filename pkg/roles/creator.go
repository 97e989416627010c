// Package roles implements the PCZT pipeline stages: proposal building,
// proving, pre-signature verification, signing, combining, and final
// transaction extraction. Each stage consumes a PCZT, transforms it, and
// hands it to the next; stages may run on different machines with the
// PCZT serialized in between.
package roles

import (
	"github.com/zclabs/zcash-pczt/pkg/pczt"
	"github.com/zclabs/zcash-pczt/pkg/request"
)

// Creator initializes an empty PCZT with the consensus parameters every
// later stage relies on.
type Creator struct {
	consensusBranchID uint32
	expiryHeight      uint32
	coinType          uint32
	orchardAnchor     [32]byte
	fallbackLockTime  *uint32
}

// NewCreator builds a Creator for the given consensus parameters.
func NewCreator(params request.Params, orchardAnchor [32]byte) *Creator {
	return &Creator{
		consensusBranchID: params.ConsensusBranchID,
		expiryHeight:      params.ExpiryHeight,
		coinType:          params.CoinType,
		orchardAnchor:     orchardAnchor,
	}
}

// WithFallbackLockTime sets the lock time used when no input requires one.
func (c *Creator) WithFallbackLockTime(lockTime uint32) *Creator {
	c.fallbackLockTime = &lockTime
	return c
}

// Create produces a new PCZT with empty bundles. All modifiable flags are
// set; the Orchard bundle carries the anchor and both enable flags.
func (c *Creator) Create() *pczt.PCZT {
	return &pczt.PCZT{
		Global: pczt.Global{
			TxVersion:         pczt.V5TxVersion,
			VersionGroupID:    pczt.V5VersionGroupID,
			ConsensusBranchID: c.consensusBranchID,
			FallbackLockTime:  c.fallbackLockTime,
			ExpiryHeight:      c.expiryHeight,
			CoinType:          c.coinType,
			TxModifiable: pczt.FlagTransparentInputsModifiable |
				pczt.FlagTransparentOutputsModifiable |
				pczt.FlagShieldedModifiable,
			Proprietary: map[string][]byte{},
		},
		Transparent: pczt.TransparentBundle{},
		Sapling:     pczt.SaplingBundle{},
		Orchard: pczt.OrchardBundle{
			Flags:  pczt.OrchardFlagsEnabled,
			Anchor: c.orchardAnchor,
		},
	}
}
