package dto

import "time"

type CreateStarsInvoiceRequest struct {
	Plan string `json:"plan"`
}

type InvoiceLinkResponse struct {
	InvoiceLink string `json:"invoice_link"`
}

type VerifyTONRequest struct {
	Plan      string `json:"plan"`
	BocBase64 string `json:"boc"`
}

type PaymentResultResponse struct {
	OK               bool       `json:"ok"`
	AlreadyProcessed bool       `json:"already_processed,omitempty"`
	PremiumUntil     *time.Time `json:"premium_until,omitempty"`
}

type WebhookAckResponse struct {
	OK bool `json:"ok"`
}
