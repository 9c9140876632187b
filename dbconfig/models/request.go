package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	ID        int64
	ChainKey  string
	Recipient string
	Amount    decimal.Decimal
	Asset     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
