package models

import (
	"time"
)

type Chain struct {
	ID             int64
	Key            string
	Name           string
	Type           string
	NativeSymbol   string
	NativeDecimals int
	AvgBlockTime   float64
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
