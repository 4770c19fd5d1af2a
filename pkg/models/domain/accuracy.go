package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActualBill is a daily actual-cost figure for the period a snapshot covers.
type ActualBill struct {
	Amount   decimal.Decimal
	ByType   map[ResourceType]decimal.Decimal
	Period   TimePeriod
	Currency string
	Source   string // manual, aws_ce, azure_cost_management, databricks_billing
}

type TypeGap struct {
	Type            ResourceType
	Estimated       decimal.Decimal
	Actual          decimal.Decimal
	Gap             decimal.Decimal
	AccuracyPercent *decimal.Decimal // nil when Actual is not positive
}

type AccuracyReport struct {
	RunID           string
	ConnectionID    string
	Estimated       decimal.Decimal
	Actual          decimal.Decimal
	Gap             decimal.Decimal
	AccuracyPercent decimal.Decimal
	ByType          []TypeGap
	Source          string
	CreatedAt       time.Time
}
