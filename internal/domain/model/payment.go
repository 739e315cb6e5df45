package model

import (
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
)

// Payment is one row per payment attempt outcome. Amount is kept as the exact
// decimal string the provider reported; it is never stored as a float.
type Payment struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"user_id"`
	Amount          string              `json:"amount"`
	Currency        string              `json:"currency"`
	Plan            enums.Plan          `json:"plan"`
	Status          enums.PaymentStatus `json:"status"`
	Method          enums.PaymentMethod `json:"method"`
	TransactionHash *string             `json:"transaction_hash"`
	ExternalEventID *string             `json:"external_event_id"`
	CreatedAt       time.Time           `json:"created_at"`
}
