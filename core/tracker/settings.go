package tracker

import "time"

// Settings are the per-sender tunables named in §6 of the design.
type Settings struct {
	PollInterval                  time.Duration
	MaxBlocksToWaitForMine        uint64
	ReplacementFeePercentIncrease uint64

	// TreatDroppedAsPending resolves Open Question (a): the upstream
	// implementation this design follows observes Dropped status
	// unreliably and therefore always treats it as still pending. Default
	// true preserves that suppression; set false to surface Dropped as a
	// distinct update instead.
	TreatDroppedAsPending bool
}

// DefaultSettings returns conservative defaults matching the reference
// implementation's suppression of Dropped status.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:                  time.Second,
		MaxBlocksToWaitForMine:        3,
		ReplacementFeePercentIncrease: 10,
		TreatDroppedAsPending:         true,
	}
}
