package errors

import "fmt"

// Kind is the spec-level error taxonomy (spec.md §7): a small, closed set
// of kinds the matching core's callers branch on, layered over the
// existing fine-grained ErrorCode values.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindRiskRejection  Kind = "risk_rejection"
	KindUnfulfillable  Kind = "unfulfillable_tif"
	KindNotFound       Kind = "not_found"
	KindTransient      Kind = "transient_failure"
	KindInvariant      Kind = "invariant_violation"
)

var kindByCode = map[ErrorCode]Kind{
	ErrInvalidOrder:          KindValidation,
	ErrInvalidPrice:          KindValidation,
	ErrInvalidQuantity:       KindValidation,
	ErrSymbolNotFound:        KindValidation,
	ErrMarketClosed:          KindValidation,
	ErrValidationFailed:      KindValidation,
	ErrInvalidInput:          KindValidation,
	ErrMissingField:          KindValidation,
	ErrInvalidFormat:         KindValidation,

	ErrRiskLimitExceeded:     KindRiskRejection,
	ErrPositionLimitExceeded: KindRiskRejection,
	ErrDailyLimitExceeded:    KindRiskRejection,
	ErrInsufficientFunds:     KindRiskRejection,
	ErrPriceOutOfRange:       KindRiskRejection,
	ErrRateLimited:           KindRiskRejection,

	ErrCrossedMarket:  KindUnfulfillable,
	ErrMatchingFailed: KindUnfulfillable,

	ErrOrderNotFound: KindNotFound,
	ErrOrderCanceled: KindNotFound,

	ErrServiceUnavailable: KindTransient,
	ErrDatabaseConnection: KindTransient,
	ErrTimeout:            KindTransient,

	ErrInternalError:    KindInvariant,
	ErrEngineOverloaded: KindInvariant,
	ErrOrderBookFull:    KindInvariant,
}

// KindOf maps a TradSysError's code onto the spec taxonomy. Unknown codes
// default to KindInvariant so that unmapped failures fail loud rather
// than being silently treated as client errors.
func KindOf(err error) Kind {
	code := GetErrorCode(err)
	if k, ok := kindByCode[code]; ok {
		return k
	}
	return KindInvariant
}

// Validation constructs a KindValidation error.
func Validation(format string, args ...interface{}) *TradSysError {
	return Newf(ErrValidationFailed, format, args...)
}

// RiskRejection constructs a KindRiskRejection error.
func RiskRejection(format string, args ...interface{}) *TradSysError {
	return Newf(ErrRiskLimitExceeded, format, args...)
}

// Unfulfillable constructs a KindUnfulfillable error for IOC/FOK orders
// that could not be executed per their time-in-force rule.
func Unfulfillable(format string, args ...interface{}) *TradSysError {
	return Newf(ErrMatchingFailed, format, args...)
}

// NotFound constructs a KindNotFound error.
func NotFound(format string, args ...interface{}) *TradSysError {
	return Newf(ErrOrderNotFound, format, args...)
}

// Transient constructs a KindTransient error for a ledger/event-sink
// failure the caller should retry within the writer step.
func Transient(format string, args ...interface{}) *TradSysError {
	return Newf(ErrServiceUnavailable, format, args...)
}

// Invariant constructs a KindInvariant error: should be unreachable,
// logged with full context, pair quarantined.
func Invariant(format string, args ...interface{}) *TradSysError {
	return NewWithSeverity(ErrInternalError, fmt.Sprintf(format, args...), SeverityCritical)
}
