package analytics

// PercentageChange computes the period-over-period change between two values.
// Returns nil when the previous value is zero, so the caller can distinguish
// "no baseline" from "no change".
func PercentageChange(current, previous float64) *float64 {
	if previous > 0 {
		change := ((current - previous) / previous) * 100
		return &change
	}
	return nil
}
