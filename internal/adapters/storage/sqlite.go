package storage

// sqlite.go — diario de evaluaciones.
//
// Estrategia:
//   - `evaluations`: una fila por evaluación (señal + decisión + latencia). El book
//     crudo nunca se guarda: solo lo que el motor derivó de él.
//   - Decimales (precios, tamaños, volúmenes) como TEXT para no perder precisión;
//     métricas float como REAL.
//   - Tiempos como INTEGER (unix nanos): comparaciones de rango exactas y sin
//     depender del formato de fecha del driver.
//   - Prune automático al arrancar: evaluaciones > 7d, órdenes cerradas > 30d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
    id             TEXT PRIMARY KEY,
    token_id       TEXT    NOT NULL,
    evaluated_at   INTEGER NOT NULL,
    computed_at    INTEGER NOT NULL,
    condition      TEXT    NOT NULL,
    confirmed      TEXT    NOT NULL,
    direction      TEXT    NOT NULL,
    imbalance      REAL    NOT NULL DEFAULT 0,
    pressure       REAL    NOT NULL DEFAULT 0,
    eff_spread     REAL    NOT NULL DEFAULT 0,
    raw_spread     REAL    NOT NULL DEFAULT 0,
    spread_pct     REAL    NOT NULL DEFAULT 0,
    concentration  REAL    NOT NULL DEFAULT 0,
    bid_conc       REAL    NOT NULL DEFAULT 0,
    ask_conc       REAL    NOT NULL DEFAULT 0,
    best_bid       TEXT    NOT NULL,
    best_ask       TEXT    NOT NULL,
    midpoint       TEXT    NOT NULL,
    bid_volume     TEXT    NOT NULL,
    ask_volume     TEXT    NOT NULL,
    should_trade   INTEGER NOT NULL DEFAULT 0,
    side           TEXT    NOT NULL,
    limit_price    TEXT    NOT NULL,
    size           TEXT    NOT NULL,
    reason         TEXT    NOT NULL,
    latency_us     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_eval_at    ON evaluations(evaluated_at);
CREATE INDEX IF NOT EXISTS idx_eval_token ON evaluations(token_id, evaluated_at);
`

const (
	retentionEvaluations = 7 * 24 * time.Hour  // evaluaciones: 7 días
	retentionOrders      = 30 * 24 * time.Hour // órdenes cerradas: 30 días
)

// SQLiteStorage implementa ports.Storage y ports.OrderJournal usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	for _, ddl := range []string{schema, orderSchema} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
		}
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background(), time.Now().UTC())
	return s, nil
}

// SaveEvaluation persiste una evaluación. Si no trae ID se le asigna uno.
func (s *SQLiteStorage) SaveEvaluation(ctx context.Context, e domain.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	sig, dec := e.Signal, e.Decision

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations
			(id, token_id, evaluated_at, computed_at, condition, confirmed, direction,
			 imbalance, pressure, eff_spread, raw_spread, spread_pct,
			 concentration, bid_conc, ask_conc,
			 best_bid, best_ask, midpoint, bid_volume, ask_volume,
			 should_trade, side, limit_price, size, reason, latency_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TokenID, unixNano(e.EvaluatedAt), unixNano(sig.ComputedAt),
		sig.Condition.String(), e.Confirmed.String(), sig.Direction.String(),
		sig.VolumeImbalance, sig.PricePressure, sig.EffectiveSpread, sig.RawSpread, sig.SpreadPct,
		sig.Concentration, sig.BidConcentration, sig.AskConcentration,
		sig.BestBid.String(), sig.BestAsk.String(), sig.Midpoint.String(),
		sig.BidVolume.String(), sig.AskVolume.String(),
		boolToInt(dec.ShouldTrade), dec.Side.String(), dec.LimitPrice.String(), dec.Size.String(),
		dec.Reason, e.Latency.Microseconds(),
	); err != nil {
		return fmt.Errorf("storage.SaveEvaluation: insert %s: %w", e.ID, err)
	}
	return nil
}

// GetHistory devuelve las evaluaciones con evaluated_at en [from, to],
// en orden cronológico.
func (s *SQLiteStorage) GetHistory(ctx context.Context, from, to time.Time) ([]domain.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_id, evaluated_at, computed_at, condition, confirmed, direction,
		       imbalance, pressure, eff_spread, raw_spread, spread_pct,
		       concentration, bid_conc, ask_conc,
		       best_bid, best_ask, midpoint, bid_volume, ask_volume,
		       should_trade, side, limit_price, size, reason, latency_us
		FROM evaluations
		WHERE evaluated_at BETWEEN ? AND ?
		ORDER BY evaluated_at ASC
	`, unixNano(from), unixNano(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var evals []domain.Evaluation
	for rows.Next() {
		var (
			e                          domain.Evaluation
			evaluatedAt, computedAt    int64
			cond, confirmed, dir, side string
			shouldTrade                int
			latencyUS                  int64
		)
		sig := &e.Signal
		dec := &e.Decision

		if err := rows.Scan(
			&e.ID, &e.TokenID, &evaluatedAt, &computedAt, &cond, &confirmed, &dir,
			&sig.VolumeImbalance, &sig.PricePressure, &sig.EffectiveSpread, &sig.RawSpread, &sig.SpreadPct,
			&sig.Concentration, &sig.BidConcentration, &sig.AskConcentration,
			&sig.BestBid, &sig.BestAsk, &sig.Midpoint, &sig.BidVolume, &sig.AskVolume,
			&shouldTrade, &side, &dec.LimitPrice, &dec.Size, &dec.Reason, &latencyUS,
		); err != nil {
			return nil, fmt.Errorf("storage.GetHistory: scan row: %w", err)
		}

		e.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
		e.Confirmed = domain.ParseCondition(confirmed)
		e.Latency = time.Duration(latencyUS) * time.Microsecond
		sig.TokenID = e.TokenID
		sig.ComputedAt = time.Unix(0, computedAt).UTC()
		sig.Condition = domain.ParseCondition(cond)
		sig.Direction = domain.ParseDirection(dir)
		dec.ShouldTrade = shouldTrade == 1
		dec.Side = domain.ParseDirection(side)

		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context, now time.Time) {
	s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE evaluated_at < ?`,
		unixNano(now.Add(-retentionEvaluations)))
	s.db.ExecContext(ctx, `DELETE FROM paper_orders WHERE status != ? AND placed_at < ?`,
		orderStatusOpen, unixNano(now.Add(-retentionOrders)))
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
