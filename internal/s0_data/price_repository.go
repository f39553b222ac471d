package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// PriceRepository implements contracts.BarSource over data.daily_prices
// ⭐ SSOT: DB 가격 데이터 로드는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// LoadSeries loads the full daily history of one stock, oldest first
func (r *PriceRepository) LoadSeries(ctx context.Context, code string) (*contracts.BarSeries, error) {
	query := `
		SELECT dp.trade_date,
			   dp.open_price::float8, dp.high_price::float8, dp.low_price::float8, dp.close_price::float8,
			   COALESCE(dp.volume, 0)::float8, COALESCE(dp.trading_value, 0)::float8,
			   COALESCE(s.name, '')
		FROM data.daily_prices dp
		LEFT JOIN data.stocks s ON dp.stock_code = s.code
		WHERE dp.stock_code = $1
		ORDER BY dp.trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query daily prices %s: %w", code, err)
	}
	defer rows.Close()

	var (
		bars []contracts.Bar
		name string
	)
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover, &name); err != nil {
			return nil, fmt.Errorf("scan daily price %s: %w", code, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("stock %s: %w", code, contracts.ErrSeriesNotFound)
	}

	fields := contracts.OHLCV | contracts.NewFieldSet(contracts.FieldTurnover)
	return contracts.NewBarSeries(code, name, fields, bars)
}

// ListCodes returns active stock codes in code order
func (r *PriceRepository) ListCodes(ctx context.Context) ([]string, error) {
	query := `
		SELECT code
		FROM data.stocks
		WHERE status = 'active'
		ORDER BY code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active stocks: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return codes, nil
}
