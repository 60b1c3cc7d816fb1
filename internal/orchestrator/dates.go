package orchestrator

import (
	"math"

	"github.com/Beez1/bounceinsights/internal/types"
)

// SampleDates picks up to n evenly spaced days from [start, end], always
// including end, most recent first. It never returns more than n+1 dates and
// every date lies within the range. An inverted range yields just end.
func SampleDates(start, end types.Date, n int) []types.Date {
	if n < 1 {
		n = 1
	}
	totalDays := int(math.Ceil(end.Sub(start.Time).Hours() / 24))
	step := max(1, totalDays/n)

	dates := make([]types.Date, 0, n+1)
	for i := 0; i < totalDays && len(dates) < n; i += step {
		dates = append(dates, start.AddDays(i))
	}

	hasEnd := false
	for _, d := range dates {
		if d.Equal(end) {
			hasEnd = true
			break
		}
	}
	if !hasEnd {
		dates = append(dates, end)
	}

	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates
}
