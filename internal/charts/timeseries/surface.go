package timeseries

import (
	"strconv"

	"xpdash/internal/progress/models"
)

// Surface is a drawing target for a computed chart.
type Surface interface {
	// Empty draws the placeholder shown when there is no data.
	Empty(message string) error
	// Draw draws a full chart.
	Draw(l Layout) error
}

// Render lays out events and draws them onto s.
func Render(s Surface, events []models.XPEvent, opts Options) error {
	l, ok := ComputeLayout(events, opts)
	if !ok {
		return s.Empty(EmptyMessage)
	}
	return s.Draw(l)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
