package models

import "time"

type RPC struct {
	ID        int64
	ChainKey  string
	URL       string
	Priority  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
