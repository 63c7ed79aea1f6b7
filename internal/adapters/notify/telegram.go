package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram entrega alertas por la Bot API de Telegram.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
	kinds   map[domain.AlertKind]bool
}

// TelegramOption configura un Telegram.
type TelegramOption func(*Telegram)

// WithAPIBase apunta a otro host de la Bot API (tests).
func WithAPIBase(base string) TelegramOption {
	return func(t *Telegram) { t.apiBase = strings.TrimRight(base, "/") }
}

// WithKinds limita la entrega a los tipos de alerta dados.
func WithKinds(kinds ...domain.AlertKind) TelegramOption {
	return func(t *Telegram) {
		t.kinds = make(map[domain.AlertKind]bool, len(kinds))
		for _, k := range kinds {
			t.kinds[k] = true
		}
	}
}

// NewTelegram crea el notifier para un bot y un chat. Por defecto manda todo
// salvo las evaluaciones de cada tick y los snapshots descartados.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		apiBase: defaultTelegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	WithKinds(
		domain.AlertStartup, domain.AlertShutdown, domain.AlertHeartbeat,
		domain.AlertCondition, domain.AlertOrder, domain.AlertCancel, domain.AlertError,
	)(t)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Notify publica la alerta con sendMessage. Los tipos filtrados se descartan sin error.
func (t *Telegram) Notify(ctx context.Context, alert domain.Alert) error {
	if !t.kinds[alert.Kind] {
		return nil
	}

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       formatAlert(alert),
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name identifica al notifier en los logs de Multi.
func (t *Telegram) Name() string { return "telegram" }

// formatAlert arma el mensaje HTML: título en negrita, texto libre y el resumen
// de la señal si la alerta trae evaluación. Todo texto variable va escapado
// (los reasons como thin_book rompen el parseo de Markdown).
func formatAlert(alert domain.Alert) string {
	var sb strings.Builder
	icon := ""
	if alert.Evaluation != nil {
		icon = alert.Evaluation.Confirmed.Icon() + " "
	}
	fmt.Fprintf(&sb, "%s<b>%s</b>", icon, html.EscapeString(alert.Title))
	if alert.Message != "" {
		fmt.Fprintf(&sb, "\n%s", html.EscapeString(alert.Message))
	}

	if e := alert.Evaluation; e != nil {
		s := e.Signal
		fmt.Fprintf(&sb, "\n<code>%s</code>", html.EscapeString(truncate(e.TokenID, 24)))
		fmt.Fprintf(&sb, "\nbid %s / ask %s", s.BestBid.StringFixed(4), s.BestAsk.StringFixed(4))
		fmt.Fprintf(&sb, "\nimb %.2f | prs %+.2f | spr %.4f | conc %.2f",
			s.VolumeImbalance, s.PricePressure, s.EffectiveSpread, s.Concentration)
		fmt.Fprintf(&sb, "\n%s", html.EscapeString(decisionLabel(e.Decision)))
	}
	return sb.String()
}
