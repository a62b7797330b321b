package model

import "strings"

// Priority selects the lane a request is admitted to. Fast always
// drains before standard.
type Priority string

const (
	PriorityFast     Priority = "fast"
	PriorityStandard Priority = "standard"
)

var validPriorities = map[Priority]bool{
	PriorityFast:     true,
	PriorityStandard: true,
}

func IsValidPriority(p Priority) bool {
	return validPriorities[p]
}

// Subscription tiers that buy the fast lane.
var fastTiers = map[string]bool{
	"premium": true,
	"elite":   true,
}

// PriorityForTier maps a subscription tier to a lane. Unknown tiers
// (including the empty string) go standard.
func PriorityForTier(tier string) Priority {
	if fastTiers[strings.ToLower(tier)] {
		return PriorityFast
	}
	return PriorityStandard
}
