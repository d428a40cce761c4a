package reshard

import "fmt"

// Action is what a Policy recommends for a shard.
type Action uint8

const (
	ActionNone Action = iota
	ActionClean
	ActionSplit
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionClean:
		return "clean"
	case ActionSplit:
		return "split"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Policy decides when a shard is rebuilt. Thresholds are percentages of the
// shard's append capacity, as returned by UsedSpace and StaleSpace.
type Policy struct {
	// UsedThreshold is the used space at which a shard is rebuilt at all.
	UsedThreshold int `yaml:"used_threshold" validate:"min=1,max=100"`
	// StaleThreshold is the stale space at or above which a rebuild is a
	// clean rather than a split.
	StaleThreshold int `yaml:"stale_threshold" validate:"min=0,max=100"`
}

// DefaultPolicy rebuilds at 75% used space and cleans when at least 30% is
// stale.
func DefaultPolicy() Policy {
	return Policy{UsedThreshold: 75, StaleThreshold: 30}
}

// Decide maps the space percentages of a shard to an action.
func (p Policy) Decide(used, stale int) Action {
	switch {
	case used < p.UsedThreshold:
		return ActionNone
	case stale >= p.StaleThreshold:
		return ActionClean
	default:
		return ActionSplit
	}
}
