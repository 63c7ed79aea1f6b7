package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime la alerta. Las evaluaciones se muestran en una línea o,
// en modo tabla, con el detalle de cada métrica.
// Name identifica al notifier en los logs de Multi.
func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, alert domain.Alert) error {
	if alert.Evaluation == nil {
		now := time.Now().Format("15:04:05")
		if alert.Message == "" {
			fmt.Fprintf(c.out, "[%s] %s\n", now, alert.Title)
		} else {
			fmt.Fprintf(c.out, "[%s] %s: %s\n", now, alert.Title, alert.Message)
		}
		return nil
	}

	if c.table {
		c.printFull(alert)
	} else {
		c.printCompact(alert)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(alert domain.Alert) {
	e := alert.Evaluation
	s := e.Signal

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %-11s imb %.2f prs %+.2f spr %.4f conc %.2f",
		e.EvaluatedAt.Format("15:04:05"), e.Confirmed.Icon(), e.Confirmed,
		s.VolumeImbalance, s.PricePressure, s.EffectiveSpread, s.Concentration)

	if e.Decision.ShouldTrade {
		fmt.Fprintf(&sb, " | %s %s @ %s", strings.ToUpper(e.Decision.Side.String()),
			e.Decision.Size.String(), e.Decision.LimitPrice.StringFixed(4))
	} else {
		fmt.Fprintf(&sb, " | no trade (%s)", e.Decision.Reason)
	}
	fmt.Fprintf(&sb, " %s", latencyLabel(e.Latency))

	if alert.Kind != domain.AlertEvaluation && alert.Title != "" {
		fmt.Fprintf(&sb, "\n  >> %s", alert.Title)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla de métricas de una evaluación.
func (c *Console) printFull(alert domain.Alert) {
	e := alert.Evaluation
	s := e.Signal

	title := alert.Title
	if title == "" {
		title = "evaluation"
	}
	fmt.Fprintf(c.out, "\n[%s] %s %s — %s\n", e.EvaluatedAt.Format("15:04:05"),
		e.Confirmed.Icon(), title, truncate(e.TokenID, 20))

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Best bid / ask", fmt.Sprintf("%s / %s", s.BestBid.StringFixed(4), s.BestAsk.StringFixed(4)))
	table.Append("Volume bid / ask", fmt.Sprintf("%s / %s", s.BidVolume.String(), s.AskVolume.String()))
	table.Append("Imbalance", fmt.Sprintf("%.4f", s.VolumeImbalance))
	table.Append("Pressure", fmt.Sprintf("%+.4f", s.PricePressure))
	table.Append("Spread raw / eff", fmt.Sprintf("%.4f / %.4f", s.RawSpread, s.EffectiveSpread))
	table.Append("Concentration", fmt.Sprintf("%.2f (bid %.2f, ask %.2f)", s.Concentration, s.BidConcentration, s.AskConcentration))
	table.Append("Condition", fmt.Sprintf("%s (raw %s, %s)", e.Confirmed, s.Condition, s.Direction))
	table.Append("Decision", decisionLabel(e.Decision))
	table.Append("Latency", latencyLabel(e.Latency))
	table.Render()
}

// PrintHistory imprime el diario de evaluaciones guardado.
func (c *Console) PrintHistory(evals []domain.Evaluation) {
	if len(evals) == 0 {
		fmt.Fprintln(c.out, "\n  No evaluations recorded in the selected range.")
		return
	}

	fmt.Fprintf(c.out, "\n=== EVALUATION HISTORY (%d) ===\n", len(evals))

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Token", "Cond", "Dir", "Imb", "Prs", "Spread", "Conc", "Decision", "Lat")

	counts := make(map[domain.MarketCondition]int, 3)
	trades := 0
	for _, e := range evals {
		counts[e.Confirmed]++
		if e.Decision.ShouldTrade {
			trades++
		}
		table.Append(
			e.EvaluatedAt.Format("01-02 15:04:05"),
			truncate(e.TokenID, 14),
			e.Confirmed.Icon(),
			e.Signal.Direction.String(),
			fmt.Sprintf("%.2f", e.Signal.VolumeImbalance),
			fmt.Sprintf("%+.2f", e.Signal.PricePressure),
			fmt.Sprintf("%.4f", e.Signal.EffectiveSpread),
			fmt.Sprintf("%.2f", e.Signal.Concentration),
			decisionLabel(e.Decision),
			latencyLabel(e.Latency),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  favorable: %d | neutral: %d | unfavorable: %d | trades: %d\n\n",
		counts[domain.ConditionFavorable], counts[domain.ConditionNeutral],
		counts[domain.ConditionUnfavorable], trades)
}

func decisionLabel(d domain.TradeDecision) string {
	if !d.ShouldTrade {
		return "skip: " + d.Reason
	}
	return fmt.Sprintf("%s %s @ %s", strings.ToUpper(d.Side.String()), d.Size.String(), d.LimitPrice.StringFixed(4))
}

func latencyLabel(d time.Duration) string {
	return fmt.Sprintf("%dµs", d.Microseconds())
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
