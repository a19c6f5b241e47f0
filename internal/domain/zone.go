package domain

// Zone is a tight multi-touch consolidation band detected over a trailing
// window of closing prices. It is recomputed every bar and has no persistent
// identity; SameAs detects whether a newly computed zone is a refresh of a
// previously held candidate.
type Zone struct {
	StartIdx      int     // Index of the first bar of the window in the full series
	EndIdx        int     // Index of the last bar of the window
	LowClose      float64 // Lower band boundary (min close in window)
	HighClose     float64 // Upper band boundary (max close in window)
	Width         float64 // HighClose - LowClose
	TouchesTop    int     // Debounced touches of the upper boundary
	TouchesBottom int     // Debounced touches of the lower boundary
	TotalTouches  int     // Touches of either boundary under a shared debounce clock
	ATR           float64 // ATR value on the full series at detection time
	DwellBars     int     // Window length the zone spans
}

// SameAs reports whether z describes the same band as other, by the
// (EndIdx, Width) identity used to distinguish refresh from continuation.
func (z *Zone) SameAs(other *Zone) bool {
	if z == nil || other == nil {
		return false
	}
	return z.EndIdx == other.EndIdx && z.Width == other.Width
}
