package ingress

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradsys/clob/internal/types"
)

func toOrderIntent(req submitOrderRequest) (types.OrderIntent, error) {
	intent := types.OrderIntent{
		TradingPair: req.TradingPair,
		Side:        types.OrderSide(req.Side),
		OrderType:   types.OrderType(req.OrderType),
		UserID:      req.UserID,
		TimeInForce: types.TimeInForce(req.TimeInForce),
	}
	if intent.TimeInForce == "" {
		intent.TimeInForce = types.TimeInForceGTC
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return intent, fmt.Errorf("invalid quantity %q: %w", req.Quantity, err)
	}
	intent.Quantity = qty

	if intent.OrderType == types.OrderTypeLimit {
		if req.Price == "" {
			return intent, fmt.Errorf("price is required for limit orders")
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			return intent, fmt.Errorf("invalid price %q: %w", req.Price, err)
		}
		intent.Price = price
	} else if req.Price != "" {
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			return intent, fmt.Errorf("invalid price %q: %w", req.Price, err)
		}
		intent.Price = price
	}

	return intent, nil
}
