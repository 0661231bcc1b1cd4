package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserPosition is one per (user, pair): balances, locks and risk
// bookkeeping. All six numeric fields are invariantly >= 0; lock/unlock/
// settle triples conserve baseBalance+lockedBase and
// quoteBalance+lockedQuote modulo fees.
type UserPosition struct {
	UserID         string
	TradingPair    string
	BaseBalance    decimal.Decimal
	QuoteBalance   decimal.Decimal
	LockedBase     decimal.Decimal
	LockedQuote    decimal.Decimal
	DailyVolume    decimal.Decimal
	OpenOrderCount int
	LastOrderTime  time.Time
}
