// Package depreciation computes straight-line book values for devices.
package depreciation

import (
	"errors"
	"math"
	"time"
)

// DaysPerYear averages leap years into the elapsed-time calculation.
const DaysPerYear = 365.25

var (
	// ErrInvalidLifetime is returned when the expected lifetime is not positive.
	ErrInvalidLifetime = errors.New("depreciation: expected lifetime must be at least one year")
	// ErrInvalidPrice is returned for negative or non-finite prices.
	ErrInvalidPrice = errors.New("depreciation: purchase price must be a non-negative amount")
)

// Input is everything the calculation depends on.
type Input struct {
	PurchasePrice         float64
	PurchaseDate          time.Time
	ExpectedLifetimeYears int
}

// Result is one depreciation snapshot.
type Result struct {
	AnnualDepreciation     float64
	CurrentBookValue       float64
	DepreciationPercentage float64
	YearsElapsed           float64
	CalculatedAt           time.Time
}

// Calculate returns the straight-line depreciation of in as of now. The book
// value never drops below zero. DepreciationPercentage is the annual rate
// (annual depreciation over price), not the share already written off.
func Calculate(in Input, now time.Time) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	annual := in.PurchasePrice / float64(in.ExpectedLifetimeYears)
	years := YearsElapsed(in.PurchaseDate, now)
	book := math.Max(0, in.PurchasePrice-annual*years)

	percentage := 0.0
	if in.PurchasePrice > 0 {
		percentage = annual / in.PurchasePrice * 100
	}

	return Result{
		AnnualDepreciation:     Round(annual),
		CurrentBookValue:       Round(book),
		DepreciationPercentage: Round(percentage),
		YearsElapsed:           years,
		CalculatedAt:           now,
	}, nil
}

// Initial is the snapshot recorded when a device is registered: full book
// value and nothing written off yet.
func Initial(in Input, now time.Time) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}
	return Result{
		AnnualDepreciation:     Round(in.PurchasePrice / float64(in.ExpectedLifetimeYears)),
		CurrentBookValue:       Round(in.PurchasePrice),
		DepreciationPercentage: 0,
		CalculatedAt:           now,
	}, nil
}

// YearsElapsed measures from purchase to now in average-length years. Future
// purchase dates count as zero.
func YearsElapsed(purchase, now time.Time) float64 {
	d := now.Sub(purchase)
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24 / DaysPerYear
}

// EndOfLife is the date a device reaches the end of its expected lifetime.
func EndOfLife(purchase time.Time, lifetimeYears int) time.Time {
	return purchase.AddDate(lifetimeYears, 0, 0)
}

// Round rounds to cents.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func validate(in Input) error {
	if in.ExpectedLifetimeYears <= 0 {
		return ErrInvalidLifetime
	}
	if in.PurchasePrice < 0 || math.IsNaN(in.PurchasePrice) || math.IsInf(in.PurchasePrice, 0) {
		return ErrInvalidPrice
	}
	return nil
}
