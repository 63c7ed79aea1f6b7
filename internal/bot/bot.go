package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/alejandrodnm/polyslip/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config contiene la configuración del loop.
type Config struct {
	TokenID           string
	Interval          time.Duration
	HeartbeatInterval time.Duration
	ErrorBackoff      time.Duration
	MaxSnapshotAge    time.Duration
	LatencyBudget     time.Duration
	Confirmations     int
	WindowSize        int
	DryRun            bool // evalúa y notifica, pero nunca coloca órdenes

	// Mode elige cómo se actúa sobre una decisión operable: una orden en la
	// dirección de la señal o cotización a dos lados.
	Mode Mode
	// QuoteBudget es el capital (USDC) que reparte el modo quote entre los dos lados.
	QuoteBudget decimal.Decimal
	// SpreadSlip se suma al último precio al convertir el presupuesto en shares.
	SpreadSlip decimal.Decimal
}

// Mode es la forma de operar del bot.
type Mode string

const (
	ModeDirectional Mode = "directional"
	ModeQuote       Mode = "quote"
)

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Second,
		HeartbeatInterval: time.Minute,
		ErrorBackoff:      10 * time.Second,
		MaxSnapshotAge:    5 * time.Second,
		LatencyBudget:     2 * time.Millisecond,
		Confirmations:     1,
		WindowSize:        16,
		Mode:              ModeDirectional,
		SpreadSlip:        decimal.RequireFromString("0.01"),
	}
}

// Deps agrupa las dependencias del bot. Solo Books y Notifier son obligatorias;
// sin Executor el bot solo observa. Prices solo lo usa el modo quote para
// dimensionar; sin él se usa el midpoint del book.
type Deps struct {
	Books     ports.BookProvider
	Prices    ports.PriceProvider
	Executor  ports.OrderExecutor
	Storage   ports.Storage
	Publisher ports.SignalPublisher
	Notifier  ports.Notifier
}

// restorer lo implementan los ejecutores que pueden recuperar órdenes abiertas
// de una ejecución anterior.
type restorer interface {
	Restore(ctx context.Context, tokenID string) ([]domain.PlacedOrder, error)
}

// Skip reasons reported by Tick.
const (
	SkipStale     = "stale"
	SkipDuplicate = "duplicate"
	SkipInvalid   = "invalid"
)

// TickResult describe lo que hizo una iteración del loop.
type TickResult struct {
	Evaluated  bool
	SkipReason string
	Evaluation domain.Evaluation
}

// Stats son los contadores que se reportan en el heartbeat.
type Stats struct {
	Evaluations int
	Skipped     int
	Invalid     int
	Errors      int
	Orders      int
	Cancels     int
	SlowEvals   int
}

// Bot es el orquestador: fetch → analyze → stabilize → decide → actuar.
type Bot struct {
	cfg      Config
	deps     Deps
	analyzer *analyzer.Analyzer
	now      func() time.Time

	window        *domain.SignalWindow
	lastConfirmed domain.MarketCondition
	hasConfirmed  bool
	lastBookAt    time.Time
	resting       map[domain.Direction]domain.PlacedOrder
	lastHeartbeat time.Time
	lastSkipAlert time.Time
	stats         Stats
}

// Option configura un Bot.
type Option func(*Bot)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New crea un Bot con todas las dependencias inyectadas.
func New(cfg Config, a *analyzer.Analyzer, deps Deps, opts ...Option) *Bot {
	b := &Bot{
		cfg:      cfg,
		deps:     deps,
		analyzer: a,
		now:      func() time.Time { return time.Now().UTC() },
		window:   domain.NewSignalWindow(cfg.WindowSize),
		resting:  make(map[domain.Direction]domain.PlacedOrder, 2),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats devuelve una copia de los contadores.
func (b *Bot) Stats() Stats { return b.stats }

// Resting devuelve la primera orden que el bot mantiene en el book (la única
// en modo direccional), si la hay.
func (b *Bot) Resting() (domain.PlacedOrder, bool) {
	orders := b.Orders()
	if len(orders) == 0 {
		return domain.PlacedOrder{}, false
	}
	return orders[0], true
}

// Orders devuelve las órdenes en el book, compra primero.
func (b *Bot) Orders() []domain.PlacedOrder {
	out := make([]domain.PlacedOrder, 0, len(b.resting))
	for _, side := range sides {
		if o, ok := b.resting[side]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Run ejecuta el loop hasta que el contexto se cancele.
func (b *Bot) Run(ctx context.Context) error {
	ac := b.analyzer.Config()
	slog.Info("bot starting",
		"token", b.cfg.TokenID,
		"interval", b.cfg.Interval,
		"confirmations", b.cfg.Confirmations,
		"mode", b.cfg.Mode,
		"dry_run", b.cfg.DryRun,
		"levels", ac.PriceLevels,
		"imbalance_threshold", ac.ImbalanceThreshold,
		"max_spread", ac.MaxTradeableSpread().String(),
	)
	b.alert(ctx, domain.Alert{
		Kind:    domain.AlertStartup,
		Title:   "slipbot started",
		Message: fmt.Sprintf("token %s, every %s", b.cfg.TokenID, b.cfg.Interval),
	})
	b.restore(ctx)
	b.lastHeartbeat = b.now()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case <-ticker.C:
		}

		if _, err := b.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.stats.Errors++
			slog.Error("bot tick failed", "err", err, "backoff", b.cfg.ErrorBackoff)
			b.alert(ctx, domain.Alert{Kind: domain.AlertError, Title: "tick failed", Message: err.Error()})

			select {
			case <-ctx.Done():
			case <-time.After(b.cfg.ErrorBackoff):
			}
		}
		b.heartbeat(ctx)
	}
}

// RunOnce obtiene un snapshot, lo evalúa y registra el resultado sin tocar
// órdenes. A diferencia de Tick, un snapshot inválido es un error.
func (b *Bot) RunOnce(ctx context.Context) (domain.Evaluation, error) {
	raw, err := b.deps.Books.FetchOrderBook(ctx, b.cfg.TokenID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("bot.RunOnce: fetch: %w", err)
	}
	eval, err := b.evaluate(raw)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("bot.RunOnce: %w", err)
	}
	b.record(ctx, eval)
	return eval, nil
}

// Tick ejecuta una iteración: descarta snapshots viejos, repetidos o inválidos,
// evalúa, registra y gestiona la orden en el book.
func (b *Bot) Tick(ctx context.Context) (TickResult, error) {
	raw, err := b.deps.Books.FetchOrderBook(ctx, b.cfg.TokenID)
	if err != nil {
		// Sin datos no hay confirmaciones consecutivas
		b.window.Reset()
		return TickResult{}, fmt.Errorf("bot.Tick: fetch: %w", err)
	}

	now := b.now()
	if age := now.Sub(raw.Timestamp); b.cfg.MaxSnapshotAge > 0 && age > b.cfg.MaxSnapshotAge {
		b.skip(ctx, SkipStale, fmt.Sprintf("snapshot is %s old", age.Round(time.Millisecond)))
		return TickResult{SkipReason: SkipStale}, nil
	}
	if !b.lastBookAt.IsZero() && !raw.Timestamp.After(b.lastBookAt) {
		slog.Debug("snapshot not newer than last evaluated", "ts", raw.Timestamp)
		return TickResult{SkipReason: SkipDuplicate}, nil
	}

	eval, err := b.evaluate(raw)
	if err != nil {
		var be *domain.BookError
		if errors.As(err, &be) {
			b.stats.Invalid++
			b.lastBookAt = raw.Timestamp
			b.skip(ctx, SkipInvalid, be.Error())
			return TickResult{SkipReason: SkipInvalid}, nil
		}
		return TickResult{}, fmt.Errorf("bot.Tick: %w", err)
	}
	b.lastBookAt = raw.Timestamp

	b.record(ctx, eval)
	if !b.cfg.DryRun && b.deps.Executor != nil {
		b.manage(ctx, eval)
	}
	return TickResult{Evaluated: true, Evaluation: eval}, nil
}

// evaluate corre el analizador, mide la latencia y aplica la histéresis.
func (b *Bot) evaluate(raw domain.RawBook) (domain.Evaluation, error) {
	start := time.Now()
	sig, dec, err := b.analyzer.Analyze(raw)
	latency := time.Since(start)
	if err != nil {
		return domain.Evaluation{}, err
	}

	confirmed := analyzer.Stabilize(b.window, sig, b.cfg.Confirmations)
	dec = analyzer.Gate(dec, confirmed)

	if b.cfg.LatencyBudget > 0 && latency > b.cfg.LatencyBudget {
		b.stats.SlowEvals++
		slog.Warn("evaluation over latency budget",
			"latency", latency,
			"budget", b.cfg.LatencyBudget,
			"bids", len(raw.Bids),
			"asks", len(raw.Asks),
		)
	}

	tokenID := raw.TokenID
	if tokenID == "" {
		tokenID = b.cfg.TokenID
	}
	return domain.Evaluation{
		ID:          uuid.New().String(),
		TokenID:     tokenID,
		Signal:      sig,
		Decision:    dec,
		Confirmed:   confirmed,
		Latency:     latency,
		EvaluatedAt: b.now(),
	}, nil
}

// record persiste, publica y notifica una evaluación. Ningún fallo aquí
// detiene el loop.
func (b *Bot) record(ctx context.Context, eval domain.Evaluation) {
	b.stats.Evaluations++

	slog.Debug("evaluation",
		"condition", eval.Confirmed,
		"direction", eval.Signal.Direction,
		"imbalance", eval.Signal.VolumeImbalance,
		"pressure", eval.Signal.PricePressure,
		"spread", eval.Signal.EffectiveSpread,
		"concentration", eval.Signal.Concentration,
		"trade", eval.Decision.ShouldTrade,
		"reason", eval.Decision.Reason,
		"latency", eval.Latency,
	)

	if b.deps.Storage != nil {
		if err := b.deps.Storage.SaveEvaluation(ctx, eval); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	if b.deps.Publisher != nil {
		if err := b.deps.Publisher.Publish(ctx, eval); err != nil {
			slog.Warn("publish error", "err", err)
		}
	}

	b.alert(ctx, domain.Alert{Kind: domain.AlertEvaluation, Evaluation: &eval})

	if !b.hasConfirmed || eval.Confirmed != b.lastConfirmed {
		from := "start"
		if b.hasConfirmed {
			from = b.lastConfirmed.String()
		}
		slog.Info("market condition changed", "from", from, "to", eval.Confirmed)
		b.alert(ctx, domain.Alert{
			Kind:       domain.AlertCondition,
			Title:      fmt.Sprintf("%s → %s", from, eval.Confirmed),
			Evaluation: &eval,
		})
		b.lastConfirmed = eval.Confirmed
		b.hasConfirmed = true
	}
}

// skip cuenta el snapshot descartado, corta la racha de confirmaciones y
// avisa como mucho una vez por heartbeat.
func (b *Bot) skip(ctx context.Context, reason, detail string) {
	b.stats.Skipped++
	b.window.Reset()
	slog.Warn("snapshot skipped", "reason", reason, "detail", detail)

	now := b.now()
	if !b.lastSkipAlert.IsZero() && now.Sub(b.lastSkipAlert) < b.cfg.HeartbeatInterval {
		return
	}
	b.lastSkipAlert = now
	b.alert(ctx, domain.Alert{Kind: domain.AlertSkipped, Title: "snapshot skipped: " + reason, Message: detail})
}

// heartbeat envía el resumen periódico de contadores.
func (b *Bot) heartbeat(ctx context.Context) {
	if b.cfg.HeartbeatInterval <= 0 {
		return
	}
	now := b.now()
	if now.Sub(b.lastHeartbeat) < b.cfg.HeartbeatInterval {
		return
	}
	b.lastHeartbeat = now

	s := b.stats
	msg := fmt.Sprintf("evals %d | skipped %d | invalid %d | errors %d | orders %d | cancels %d | slow %d | condition %s",
		s.Evaluations, s.Skipped, s.Invalid, s.Errors, s.Orders, s.Cancels, s.SlowEvals, b.lastConfirmed)
	for _, o := range b.Orders() {
		msg += fmt.Sprintf(" | resting %s %s @ %s", o.Side, o.Size, o.Price.StringFixed(4))
	}
	b.alert(ctx, domain.Alert{Kind: domain.AlertHeartbeat, Title: "heartbeat", Message: msg})
}

// alert notifica sin propagar errores.
func (b *Bot) alert(ctx context.Context, a domain.Alert) {
	if b.deps.Notifier == nil {
		return
	}
	if err := b.deps.Notifier.Notify(ctx, a); err != nil {
		slog.Warn("notifier error", "kind", a.Kind, "err", err)
	}
}

// shutdown retira la orden en el book y avisa. Usa un contexto propio porque
// el del loop ya está cancelado.
func (b *Bot) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if b.deps.Executor != nil {
		for _, o := range b.Orders() {
			b.cancelResting(ctx, o.Side, "shutdown")
		}
	}
	s := b.stats
	b.alert(ctx, domain.Alert{
		Kind:    domain.AlertShutdown,
		Title:   "slipbot stopped",
		Message: fmt.Sprintf("evals %d | orders %d | cancels %d", s.Evaluations, s.Orders, s.Cancels),
	})
	slog.Info("bot stopped", "evaluations", s.Evaluations, "orders", s.Orders)
}
