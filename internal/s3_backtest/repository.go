package s3_backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// ErrNoRuns is returned when no completed run exists yet
var ErrNoRuns = errors.New("no completed analysis run")

// Repository 분석 결과 저장소 (analytics.signal_*)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun upserts the run record
func (r *Repository) SaveRun(ctx context.Context, run *contracts.RunInfo) error {
	query := `
		INSERT INTO analytics.signal_runs
			(run_id, config_hash, horizon, instruments, skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			config_hash = EXCLUDED.config_hash,
			horizon = EXCLUDED.horizon,
			instruments = EXCLUDED.instruments,
			skipped = EXCLUDED.skipped,
			finished_at = EXCLUDED.finished_at`

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = run.StartedAt
	}

	_, err := r.pool.Exec(ctx, query,
		run.RunID, run.ConfigHash, run.Horizon,
		run.Instruments, run.Skipped, run.StartedAt, finished,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// SaveStockStats 종목별 시그널 통계 일괄 저장
func (r *Repository) SaveStockStats(ctx context.Context, runID string, report *contracts.StockReport) error {
	if len(report.Stats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO analytics.signal_stats
			(run_id, stock_code, stock_name, signal, position, occurrences, wins, win_rate, avg_return, raw_count, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, stock_code, signal) DO UPDATE SET
			stock_name = EXCLUDED.stock_name,
			position = EXCLUDED.position,
			occurrences = EXCLUDED.occurrences,
			wins = EXCLUDED.wins,
			win_rate = EXCLUDED.win_rate,
			avg_return = EXCLUDED.avg_return,
			raw_count = EXCLUDED.raw_count,
			error = EXCLUDED.error`

	for i, s := range report.Stats {
		batch.Queue(query, runID, report.Code, report.Name, s.Signal, i,
			s.Count, s.Wins, s.WinRate, s.AvgReturn, s.RawCount, s.Error)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range report.Stats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save stock stats %s: %w", report.Code, err)
		}
	}

	return nil
}

// SaveSummary 전체 시장 요약 일괄 저장
func (r *Repository) SaveSummary(ctx context.Context, summary *contracts.MarketSummary) error {
	if len(summary.Entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO analytics.signal_summary
			(run_id, signal, signal_name, position, total_count, total_wins, win_rate, avg_return, instruments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, signal) DO UPDATE SET
			signal_name = EXCLUDED.signal_name,
			position = EXCLUDED.position,
			total_count = EXCLUDED.total_count,
			total_wins = EXCLUDED.total_wins,
			win_rate = EXCLUDED.win_rate,
			avg_return = EXCLUDED.avg_return,
			instruments = EXCLUDED.instruments`

	for i, e := range summary.Entries {
		batch.Queue(query, summary.RunID, e.Signal, e.Name, i,
			e.TotalCount, e.TotalWins, e.WinRate, e.AvgReturn, e.Instruments)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range summary.Entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save summary %s: %w", summary.RunID, err)
		}
	}

	return nil
}

// GetLatestSummary 가장 최근 완료된 run 의 요약 조회
func (r *Repository) GetLatestSummary(ctx context.Context) (*contracts.MarketSummary, error) {
	runQuery := `
		SELECT run_id, horizon, instruments, finished_at
		FROM analytics.signal_runs
		WHERE finished_at > started_at
		ORDER BY finished_at DESC
		LIMIT 1`

	summary := &contracts.MarketSummary{}
	err := r.pool.QueryRow(ctx, runQuery).Scan(
		&summary.RunID, &summary.Horizon, &summary.Instruments, &summary.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}

	query := `
		SELECT signal, signal_name, total_count, total_wins, win_rate, avg_return, instruments
		FROM analytics.signal_summary
		WHERE run_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, summary.RunID)
	if err != nil {
		return nil, fmt.Errorf("get summary %s: %w", summary.RunID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e contracts.SummaryEntry
		if err := rows.Scan(
			&e.Signal, &e.Name, &e.TotalCount, &e.TotalWins,
			&e.WinRate, &e.AvgReturn, &e.Instruments,
		); err != nil {
			return nil, fmt.Errorf("scan summary entry: %w", err)
		}
		summary.Entries = append(summary.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}

// GetStockStats 종목의 가장 최근 run 통계 조회
func (r *Repository) GetStockStats(ctx context.Context, code string) (*contracts.StockReport, error) {
	query := `
		SELECT s.run_id, s.stock_name, s.signal, s.occurrences, s.wins,
			   s.win_rate, s.avg_return, s.raw_count, s.error, r.finished_at
		FROM analytics.signal_stats s
		JOIN analytics.signal_runs r ON r.run_id = s.run_id
		WHERE s.stock_code = $1
		  AND s.run_id = (
			SELECT s2.run_id
			FROM analytics.signal_stats s2
			JOIN analytics.signal_runs r2 ON r2.run_id = s2.run_id
			WHERE s2.stock_code = $1
			ORDER BY r2.started_at DESC
			LIMIT 1
		  )
		ORDER BY s.position`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("get stock stats %s: %w", code, err)
	}
	defer rows.Close()

	report := &contracts.StockReport{Code: code}
	for rows.Next() {
		var s contracts.SignalStats
		if err := rows.Scan(
			&report.RunID, &report.Name, &s.Signal, &s.Count, &s.Wins,
			&s.WinRate, &s.AvgReturn, &s.RawCount, &s.Error, &report.AnalyzedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock stats: %w", err)
		}
		report.Stats = append(report.Stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(report.Stats) == 0 {
		return nil, fmt.Errorf("stock %s: %w", code, contracts.ErrSeriesNotFound)
	}
	return report, nil
}

// RepositorySink adapts Repository to the analyzer sinks
type RepositorySink struct {
	repo *Repository
}

// NewRepositorySink creates a sink that persists run output
func NewRepositorySink(repo *Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

// StartRun records the run before any stock rows reference it
func (s *RepositorySink) StartRun(ctx context.Context, run *contracts.RunInfo) error {
	return s.repo.SaveRun(ctx, run)
}

// FinishRun stamps the finish time and counts
func (s *RepositorySink) FinishRun(ctx context.Context, run *contracts.RunInfo) error {
	return s.repo.SaveRun(ctx, run)
}

// WriteStock implements contracts.StatsSink
func (s *RepositorySink) WriteStock(ctx context.Context, report *contracts.StockReport) error {
	return s.repo.SaveStockStats(ctx, report.RunID, report)
}

// WriteSummary implements contracts.SummarySink
func (s *RepositorySink) WriteSummary(ctx context.Context, summary *contracts.MarketSummary) error {
	return s.repo.SaveSummary(ctx, summary)
}
