package models

import "time"

// DepreciationRecord is an immutable book-value snapshot for a device.
type DepreciationRecord struct {
	ID                     int64     `db:"id" json:"id"`
	DeviceID               int64     `db:"device_id" json:"deviceId"`
	OriginalPrice          float64   `db:"original_price" json:"originalPrice"`
	ExpectedLifetimeYears  int       `db:"expected_lifetime_years" json:"expectedLifetimeYears"`
	AnnualDepreciation     float64   `db:"annual_depreciation" json:"annualDepreciation"`
	CalculationDate        time.Time `db:"calculation_date" json:"calculationDate"`
	CurrentBookValue       float64   `db:"current_book_value" json:"currentBookValue"`
	DepreciationPercentage float64   `db:"depreciation_percentage" json:"depreciationPercentage"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
}

// EndOfLifeDevice is a device approaching the end of its expected lifetime.
type EndOfLifeDevice struct {
	ID                    int64     `db:"id" json:"id"`
	DeviceID              string    `db:"device_id" json:"deviceId"`
	Name                  string    `db:"name" json:"name"`
	LaboratoryName        string    `db:"laboratory_name" json:"laboratoryName"`
	PurchaseDate          time.Time `db:"purchase_date" json:"purchaseDate"`
	PurchasePrice         float64   `db:"purchase_price" json:"purchasePrice"`
	ExpectedLifetimeYears int       `db:"expected_lifetime_years" json:"expectedLifetimeYears"`
	EndOfLifeDate         time.Time `db:"-" json:"endOfLifeDate"`
	CurrentBookValue      float64   `db:"-" json:"currentBookValue"`
}
