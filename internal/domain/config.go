package domain

// KeyPrefix namespaces every storage key. Overridden once at startup from storage.key_prefix.
var KeyPrefix = "taxoclass:"

// Classification defaults.
const (
	DefaultTopK         = 5
	MaxTopK             = 100
	OverfetchMultiplier = 10
	OverfetchMin        = 50
)

// OverfetchSize returns how many raw hits to request for a top-k query so that
// post-filtering by eligibility still leaves enough candidates.
func OverfetchSize(topK, multiplier, floor int) int {
	if multiplier <= 0 {
		multiplier = OverfetchMultiplier
	}
	if floor <= 0 {
		floor = OverfetchMin
	}
	return max(topK*multiplier, floor)
}
