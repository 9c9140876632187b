package models

import "time"

type Token struct {
	ID              int64
	ChainKey        string
	Symbol          string
	ContractAddress string
	Decimals        int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
