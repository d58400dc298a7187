package domain

import "math"

// Location describes one office's contribution to a sprint.
type Location struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PublicHolidays int    `json:"publicHolidays"`
	LeaveDays      int    `json:"leaveDays"`
	NumEngineers   int    `json:"numEngineers"`
}

type CapacityInput struct {
	SprintDays      int        `json:"sprintDays"`
	AverageVelocity float64    `json:"averageVelocity"`
	Locations       []Location `json:"locations"`
}

type CapacityResult struct {
	TotalEngineers         int     `json:"totalEngineers"`
	MaxPersonDays          int     `json:"maxPersonDays"`
	UnavailableDays        int     `json:"unavailableDays"`
	AvailablePersonDays    int     `json:"availablePersonDays"`
	AvailabilityPercentage float64 `json:"availabilityPercentage"`
	ProjectedCapacity      float64 `json:"projectedCapacity"`
}

// CalculateCapacity projects sprint capacity from team availability. Public
// holidays count once per engineer at the location; leave days are already a
// location-wide total.
func CalculateCapacity(input CapacityInput) CapacityResult {
	totalEngineers := 0
	unavailableDays := 0

	for _, loc := range input.Locations {
		totalEngineers += loc.NumEngineers
		unavailableDays += loc.PublicHolidays*loc.NumEngineers + loc.LeaveDays
	}

	maxPersonDays := input.SprintDays * totalEngineers
	availablePersonDays := maxPersonDays - unavailableDays

	availabilityPercentage := 0.0
	if maxPersonDays > 0 {
		availabilityPercentage = float64(availablePersonDays) / float64(maxPersonDays) * 100
	}

	projectedCapacity := input.AverageVelocity * (availabilityPercentage / 100)

	return CapacityResult{
		TotalEngineers:         totalEngineers,
		MaxPersonDays:          maxPersonDays,
		UnavailableDays:        unavailableDays,
		AvailablePersonDays:    availablePersonDays,
		AvailabilityPercentage: roundTwo(availabilityPercentage),
		ProjectedCapacity:      roundTwo(projectedCapacity),
	}
}

func roundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
