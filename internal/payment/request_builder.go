package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	d "github.com/toosale/checkout-service/domain"
)

// Settlement amounts carry six decimal places, matching the precision the
// settlement asset is quoted in.
const settlementPrecision = 6

var (
	ErrMissingDestination = errors.New("settlement destination is not configured")
	ErrInvalidRate        = errors.New("settlement conversion rate must be positive")
)

// Build converts a checkout total into a payment request. Deterministic for
// a given config and total: a Pending -> Failed -> Pending retry cycle must
// reuse the same destination and amount, because the buyer may already have
// sent funds against the original request.
func Build(total decimal.Decimal, config d.SettlementConfig) (*d.PaymentRequest, error) {
	if config.Destination == "" {
		return nil, ErrMissingDestination
	}
	if !config.ConversionRate.IsPositive() {
		return nil, ErrInvalidRate
	}

	amount := total.Mul(config.ConversionRate).Round(settlementPrecision)
	return &d.PaymentRequest{
		SettlementAmount: amount,
		Asset:            config.Asset,
		Destination:      config.Destination,
		DisplayPayload:   displayPayload(config, amount),
	}, nil
}

// displayPayload renders the string presented as a scannable code, e.g.
// "tether:TXyz...?amount=107.892000&asset=USDT".
func displayPayload(config d.SettlementConfig, amount decimal.Decimal) string {
	return fmt.Sprintf("%s:%s?amount=%s&asset=%s",
		config.Scheme,
		config.Destination,
		amount.StringFixed(settlementPrecision),
		config.Asset)
}
