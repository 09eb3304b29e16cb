package pipeline

import (
	"sort"
	"time"

	"liquidity-pulse/internal/domain"
)

// Normalize converts a raw provider series into canonical units (billions of
// USD) at daily granularity: unit conversion, daily resample, then linear
// interpolation across interior gaps. The result never reaches past the last
// real observation.
func Normalize(s domain.Series, d domain.Descriptor) domain.Series {
	return Interpolate(ResampleDaily(ConvertUnit(s, d.Factor)))
}

// ConvertUnit scales every value by the series' fixed conversion factor.
func ConvertUnit(s domain.Series, factor float64) domain.Series {
	points := make([]domain.Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = domain.Point{Date: p.Date, Value: p.Value * factor}
	}
	return domain.Series{ID: s.ID, Points: points}
}

// ResampleDaily buckets observations by UTC calendar day, averaging when a day
// carries more than one, and returns them in ascending date order.
func ResampleDaily(s domain.Series) domain.Series {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, p := range s.Points {
		day := domain.Day(p.Date)
		sums[day] += p.Value
		counts[day]++
	}

	days := make([]time.Time, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]domain.Point, 0, len(days))
	for _, day := range days {
		points = append(points, domain.Point{Date: day, Value: sums[day] / float64(counts[day])})
	}
	return domain.Series{ID: s.ID, Points: points}
}

// Interpolate fills every calendar day between the first and last observation
// with a linear estimate between the surrounding real observations. Days
// before the first or after the last observation are never synthesized.
func Interpolate(s domain.Series) domain.Series {
	if len(s.Points) < 2 {
		return s
	}

	points := make([]domain.Point, 0, len(s.Points))
	for i := 0; i < len(s.Points)-1; i++ {
		left, right := s.Points[i], s.Points[i+1]
		points = append(points, left)

		gap := int(right.Date.Sub(left.Date).Hours() / 24)
		for step := 1; step < gap; step++ {
			frac := float64(step) / float64(gap)
			points = append(points, domain.Point{
				Date:  left.Date.AddDate(0, 0, step),
				Value: left.Value + (right.Value-left.Value)*frac,
			})
		}
	}
	points = append(points, s.Points[len(s.Points)-1])

	return domain.Series{ID: s.ID, Points: points}
}
