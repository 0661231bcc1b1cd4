package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradsys/clob/internal/types"
)

// TradeRecord is the gorm model backing the trade ledger table. Quantities
// and prices are stored as their decimal string form so precision never
// round-trips through a float column.
type TradeRecord struct {
	TradeID       string `gorm:"primaryKey"`
	TradingPair   string `gorm:"index"`
	Price         string
	Quantity      string
	BuyerOrderID  string
	SellerOrderID string
	BuyerUserID   string `gorm:"index"`
	SellerUserID  string `gorm:"index"`
	BuyerFee      string
	SellerFee     string
	MatchType     string
	TimestampUnix int64 `gorm:"index"`
}

// SnapshotRecord stores the most recent snapshot per pair, overwritten
// on every write (it is a point-in-time read cache, not a history).
type SnapshotRecord struct {
	TradingPair string `gorm:"primaryKey"`
	Payload     string
	TimestampUnix int64
}

// GormLedger persists trades and snapshots to Postgres via gorm.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger opens a connection to dsn and migrates the ledger
// tables.
func NewGormLedger(dsn string) (*GormLedger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TradeRecord{}, &SnapshotRecord{}); err != nil {
		return nil, err
	}
	return &GormLedger{db: db}, nil
}

// StoreTrade implements Ledger, idempotent on trade_id via an upsert
// that is a no-op when the primary key already exists.
func (g *GormLedger) StoreTrade(ctx context.Context, trade types.Fill) error {
	record := TradeRecord{
		TradeID:       trade.TradeID,
		TradingPair:   trade.TradingPair,
		Price:         trade.Price.String(),
		Quantity:      trade.Quantity.String(),
		BuyerOrderID:  trade.BuyerOrderID,
		SellerOrderID: trade.SellerOrderID,
		BuyerUserID:   trade.BuyerUserID,
		SellerUserID:  trade.SellerUserID,
		BuyerFee:      trade.BuyerFee.String(),
		SellerFee:     trade.SellerFee.String(),
		MatchType:     string(trade.MatchType),
		TimestampUnix: trade.Timestamp.UnixMilli(),
	}
	return g.db.WithContext(ctx).
		Where(TradeRecord{TradeID: trade.TradeID}).
		FirstOrCreate(&record).Error
}

// StoreSnapshot implements Ledger.
func (g *GormLedger) StoreSnapshot(ctx context.Context, snapshot types.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	record := SnapshotRecord{
		TradingPair:   snapshot.TradingPair,
		Payload:       string(payload),
		TimestampUnix: snapshot.Timestamp,
	}
	return g.db.WithContext(ctx).Save(&record).Error
}

// RecentTrades implements Ledger.
func (g *GormLedger) RecentTrades(pair string, limit int) []types.Fill {
	var records []TradeRecord
	q := g.db.Where("trading_pair = ?", pair).Order("timestamp_unix desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil
	}
	out := make([]types.Fill, 0, len(records))
	for _, r := range records {
		out = append(out, fillFromRecord(r))
	}
	return out
}

func fillFromRecord(r TradeRecord) types.Fill {
	price, _ := decimal.NewFromString(r.Price)
	qty, _ := decimal.NewFromString(r.Quantity)
	buyerFee, _ := decimal.NewFromString(r.BuyerFee)
	sellerFee, _ := decimal.NewFromString(r.SellerFee)
	return types.Fill{
		TradeID:       r.TradeID,
		TradingPair:   r.TradingPair,
		Price:         price,
		Quantity:      qty,
		BuyerOrderID:  r.BuyerOrderID,
		SellerOrderID: r.SellerOrderID,
		BuyerUserID:   r.BuyerUserID,
		SellerUserID:  r.SellerUserID,
		BuyerFee:      buyerFee,
		SellerFee:     sellerFee,
		MatchType:     types.MatchType(r.MatchType),
		Timestamp:     time.UnixMilli(r.TimestampUnix),
	}
}
