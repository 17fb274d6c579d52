package domain

import "github.com/shopspring/decimal"

// SettlementConfig describes how a checkout total converts into the
// settlement asset. Destination comes from deployment configuration, never
// from user input.
type SettlementConfig struct {
	Asset          string          `json:"asset"`
	Scheme         string          `json:"scheme"`
	Destination    string          `json:"destination"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// PaymentRequest is what the buyer is asked to pay. For a given session it
// is built once and reused across retries, so funds already sent against it
// remain valid.
type PaymentRequest struct {
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	Asset            string          `json:"asset"`
	Destination      string          `json:"destination"`
	DisplayPayload   string          `json:"display_payload"`
}

// PaymentProof is the user-submitted reference correlating an off-band
// payment to a PaymentRequest.
type PaymentProof struct {
	Reference string `json:"reference"`
}
