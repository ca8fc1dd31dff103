package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/types"
)

// LiveExecutor sends market orders to USD-M futures. Stops and targets are
// not placed on the venue; the position monitor closes at market when a
// level is crossed, so the books here mirror the paper executor's.
type LiveExecutor struct {
	client *futures.Client
	log    logger.Logger
}

// NewLiveExecutor wraps an authenticated futures client.
func NewLiveExecutor(client *futures.Client, log logger.Logger) *LiveExecutor {
	return &LiveExecutor{client: client, log: log}
}

func orderSide(dir types.Side, closing bool) futures.SideType {
	long := dir == types.Long
	if closing {
		long = !long
	}
	if long {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

// quantity converts notional at price into a base-asset quantity string.
// Precision handling is coarse; pairs with large lot steps belong on paper.
func quantity(notional, price float64) string {
	return fmt.Sprintf("%.3f", notional/price)
}

// Open sets isolated leverage for the pair and fills a market order.
func (e *LiveExecutor) Open(ctx context.Context, req OpenRequest) (*types.Position, error) {
	if req.Price <= 0 || req.MarginUSD <= 0 || req.Leverage <= 0 {
		return nil, fmt.Errorf("executor: bad open request %s: price=%f margin=%f lev=%f",
			req.Pair, req.Price, req.MarginUSD, req.Leverage)
	}
	if _, err := e.client.NewChangeLeverageService().
		Symbol(req.Pair).
		Leverage(int(req.Leverage)).
		Do(ctx); err != nil {
		return nil, fmt.Errorf("executor: set leverage %s: %w", req.Pair, err)
	}

	notional := req.MarginUSD * req.Leverage
	order, err := e.client.NewCreateOrderService().
		Symbol(req.Pair).
		Side(orderSide(req.Direction, false)).
		Type(futures.OrderTypeMarket).
		Quantity(quantity(notional, req.Price)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: open %s: %w", req.Pair, err)
	}

	entry := req.Price
	if avg := parsePrice(order.AvgPrice); avg > 0 {
		entry = avg
	}
	e.log.Info("live_open",
		logger.String("pair", req.Pair),
		logger.String("direction", string(req.Direction)),
		logger.Float64("entry", entry),
		logger.Float64("notional", notional),
	)
	return &types.Position{
		ID:         uuid.NewString(),
		Pair:       req.Pair,
		Strategy:   req.Strategy,
		TradeType:  req.TradeType,
		Direction:  req.Direction,
		EntryPrice: entry,
		Size:       req.MarginUSD,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		HedgePrice: req.HedgePrice,
		Status:     types.StatusOpen,
		OpenedAt:   time.Now(),
	}, nil
}

// Close fills a reduce-only market order on the opposite side and books the
// fill price. Realized PnL is computed from the fill, not queried back.
func (e *LiveExecutor) Close(ctx context.Context, pos *types.Position, price float64, reason types.ExitReason) (*types.TradeRecord, error) {
	if pos.Status == types.StatusClosed {
		return nil, fmt.Errorf("executor: position %s already closed", pos.ID)
	}
	order, err := e.client.NewCreateOrderService().
		Symbol(pos.Pair).
		Side(orderSide(pos.Direction, true)).
		Type(futures.OrderTypeMarket).
		ReduceOnly(true).
		Quantity(quantity(pos.Notional(), pos.EntryPrice)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: close %s: %w", pos.Pair, err)
	}
	fill := price
	if avg := parsePrice(order.AvgPrice); avg > 0 {
		fill = avg
	}

	pnl := pos.UnrealizedPnl(fill)
	closedAt := time.Now()
	pos.Status = types.StatusClosed
	pos.ClosedAt = &closedAt
	pos.ExitPrice = types.Float64(fill)
	pos.RealizedPnl = types.Float64(pnl)
	pos.ExitReason = reason

	e.log.Info("live_close",
		logger.String("pair", pos.Pair),
		logger.String("reason", string(reason)),
		logger.Float64("exit", fill),
		logger.Float64("pnl", pnl),
	)
	return &types.TradeRecord{
		PositionID: pos.ID,
		Pair:       pos.Pair,
		Strategy:   pos.Strategy,
		TradeType:  pos.TradeType,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		Pnl:        pnl,
		ExitReason: reason,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   closedAt,
	}, nil
}

// Balance returns the USDT wallet balance.
func (e *LiveExecutor) Balance(ctx context.Context) (float64, error) {
	balances, err := e.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("executor: balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			v, err := strconv.ParseFloat(b.Balance, 64)
			if err != nil {
				return 0, fmt.Errorf("executor: parse balance %q: %w", b.Balance, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("executor: no USDT balance returned")
}

func parsePrice(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
