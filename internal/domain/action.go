package domain

// Action is a recognized protocol interaction. Only these actions move
// performance metrics; plain transfers and unrecognized calls never count.
type Action string

const (
	ActionSwap     Action = "SWAP"
	ActionDeposit  Action = "DEPOSIT"
	ActionWithdraw Action = "WITHDRAW"
	ActionHarvest  Action = "HARVEST"
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
)

// AllActions lists every recognized action in a fixed order.
var AllActions = []Action{
	ActionSwap,
	ActionDeposit,
	ActionWithdraw,
	ActionHarvest,
	ActionBuy,
	ActionSell,
}

// CapabilitySet is the per-agent toggle map of enabled actions.
// A fixed enum with independent toggles, not a runtime string registry.
type CapabilitySet map[Action]bool

// DefaultCapabilities returns a set with every recognized action enabled.
func DefaultCapabilities() CapabilitySet {
	set := make(CapabilitySet, len(AllActions))
	for _, a := range AllActions {
		set[a] = true
	}
	return set
}

// Enabled reports whether the action counts for this agent.
// Unknown actions are never enabled regardless of the toggle map.
func (s CapabilitySet) Enabled(a Action) bool {
	switch a {
	case ActionSwap, ActionDeposit, ActionWithdraw, ActionHarvest, ActionBuy, ActionSell:
		return s[a]
	default:
		return false
	}
}
