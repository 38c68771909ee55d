package timeseries

import (
	"time"

	"xpdash/internal/progress/models"
)

// Point is one plotted XP event with its running total.
type Point struct {
	ID     int64
	Label  string
	Amount float64
	// Total is the sum of Amount over this point and every earlier one.
	Total float64
	Time  time.Time
}

// Points derives chart points from events, preserving input order.
func Points(events []models.XPEvent) []Point {
	pts := make([]Point, 0, len(events))
	var total float64
	for _, e := range events {
		total += e.Amount
		pts = append(pts, Point{
			ID:     e.ID,
			Label:  e.ProjectName,
			Amount: e.Amount,
			Total:  total,
			Time:   e.OccurredAt,
		})
	}
	return pts
}

// Value is the plotted y value: the running total or the single amount.
func (p Point) Value(cumulative bool) float64 {
	if cumulative {
		return p.Total
	}
	return p.Amount
}
