package model

import "fmt"

// Mode selects the allocation strategy for one evaluation step.
type Mode string

const (
	// ModeRotation holds the best scorer per sector and rotates aggressively.
	ModeRotation Mode = "rotation"
	// ModeParentBased gates entries on sector parent trend only.
	ModeParentBased Mode = "parent_based"
	// ModeWeightedRotation sizes sector slots by parent strength rank.
	ModeWeightedRotation Mode = "weighted_rotation"
	// ModeAuto picks one of the above from the detected market regime.
	ModeAuto Mode = "auto"
)

// ParseMode validates a configured mode, defaulting to auto when empty.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRotation, ModeParentBased, ModeWeightedRotation, ModeAuto:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfiguration, s)
	}
}

// Regime is the detected broad-market condition.
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeVolatile Regime = "volatile"
	// RegimeUnknown means not enough benchmark history to classify.
	RegimeUnknown Regime = "unknown"
)
