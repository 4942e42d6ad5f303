package models

import "gorm.io/gorm"

// TradeRecord is one completed execution cycle in the trade journal.
type TradeRecord struct {
	gorm.Model
	AgentID       string  `json:"agent_id" gorm:"index"`
	FromToken     string  `json:"from_token"`
	ToToken       string  `json:"to_token"`
	Amount        float64 `json:"amount"`
	Success       bool    `json:"success"`
	Signature     string  `json:"signature,omitempty"`
	EstimatedOut  float64 `json:"estimated_out,omitempty"`
	ActualOut     float64 `json:"actual_out,omitempty"`
	PriceImpact   float64 `json:"price_impact_pct,omitempty"`
	ErrorCategory string  `json:"error_category,omitempty"`
	DurationMs    int64   `json:"execution_time_ms"`
	Timestamp     int64   `json:"timestamp"`
}
