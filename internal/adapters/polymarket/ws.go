package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	defaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	// writeWait es el máximo para escribir un frame.
	writeWait = 10 * time.Second

	// readWait es el máximo sin recibir nada antes de dar la conexión por muerta.
	readWait = 60 * time.Second

	// DefaultPingPeriod es cada cuánto se manda "PING" al canal market.
	DefaultPingPeriod = 10 * time.Second

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// ErrNoSnapshot lo devuelve FetchOrderBook hasta que llega el primer evento "book" del token.
var ErrNoSnapshot = errors.New("polymarket/ws: no snapshot received yet")

// BookStream mantiene el ladder de cada token a partir del canal market del CLOB:
// el evento "book" lo reemplaza entero y cada "price_change" actualiza un nivel.
// Implementa ports.BookProvider; Run tiene que estar corriendo para que el ladder
// siga vivo.
//
// El timestamp del snapshot es el del último frame recibido: mientras la conexión
// responde, el ladder con los deltas aplicados es el estado actual del book. Los
// PING periódicos garantizan un frame (PONG) al menos cada pingPeriod.
type BookStream struct {
	wsURL    string
	tokenIDs []string
	dialer   websocket.Dialer

	baseDelay  time.Duration
	maxDelay   time.Duration
	pingPeriod time.Duration

	mu    sync.RWMutex
	books map[string]domain.RawBook
}

// StreamOption configura un BookStream.
type StreamOption func(*BookStream)

// WithReconnectDelay cambia los límites del backoff de reconexión.
func WithReconnectDelay(base, max time.Duration) StreamOption {
	return func(s *BookStream) {
		s.baseDelay = base
		s.maxDelay = max
	}
}

// WithPingPeriod cambia el intervalo de PING. Debe ser menor que la edad máxima
// de snapshot que tolera el consumidor.
func WithPingPeriod(d time.Duration) StreamOption {
	return func(s *BookStream) {
		if d > 0 {
			s.pingPeriod = d
		}
	}
}

// NewBookStream crea un stream para los tokens dados. Con wsURL vacío usa el canal de producción.
func NewBookStream(wsURL string, tokenIDs []string, opts ...StreamOption) *BookStream {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	s := &BookStream{
		wsURL:      wsURL,
		tokenIDs:   tokenIDs,
		dialer:     websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		baseDelay:  reconnectDelay,
		maxDelay:   maxReconnectDelay,
		pingPeriod: DefaultPingPeriod,
		books:      make(map[string]domain.RawBook, len(tokenIDs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run conecta, se suscribe y consume eventos hasta que ctx se cancela,
// reconectando con backoff exponencial. Devuelve nil al cancelar.
func (s *BookStream) Run(ctx context.Context) error {
	delay := s.baseDelay
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = s.baseDelay
		}
		slog.Warn("book stream disconnected", "err", err, "retry_in", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}

		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}
}

// FetchOrderBook devuelve el ladder actual de tokenID.
func (s *BookStream) FetchOrderBook(ctx context.Context, tokenID string) (domain.RawBook, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawBook{}, err
	}
	s.mu.RLock()
	book, ok := s.books[tokenID]
	s.mu.RUnlock()
	if !ok {
		return domain.RawBook{}, fmt.Errorf("ws.FetchOrderBook %s: %w", tokenID, ErrNoSnapshot)
	}
	return book, nil
}

// session mantiene una conexión hasta que falla. connected indica si la
// suscripción llegó a enviarse, lo que resetea el backoff.
func (s *BookStream) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	defer conn.Close()

	sub, err := json.Marshal(subscribeMessage{AssetIDs: s.tokenIDs, Type: "market"})
	if err != nil {
		return false, fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	slog.Info("book stream subscribed", "url", s.wsURL, "tokens", len(s.tokenIDs), "ping", s.pingPeriod)

	conn.SetReadDeadline(time.Now().Add(readWait))

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("polymarket/ws: read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		s.handleMessage(message, time.Now().UTC())
	}
}

// pingLoop es el único escritor tras la suscripción. Cierra la conexión al
// cancelar ctx para desbloquear la lectura.
func (s *BookStream) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				return
			}
		}
	}
}

// handleMessage acepta un evento suelto o un array de eventos. Cualquier frame,
// PONG incluido, confirma que el ladder sigue vigente.
func (s *BookStream) handleMessage(raw []byte, received time.Time) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return
	}
	defer s.touch(received)

	var events []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &events); err != nil {
			slog.Debug("book stream: unparseable batch", "err", err)
			return
		}
	case '{':
		events = []json.RawMessage{trimmed}
	default:
		return // PONG
	}

	for _, ev := range events {
		var envelope wsEnvelope
		if err := json.Unmarshal(ev, &envelope); err != nil {
			continue
		}
		msgType := envelope.MsgType
		if msgType == "" {
			msgType = envelope.EventType
		}

		switch msgType {
		case "book":
			var resp orderBookResponse
			if err := json.Unmarshal(ev, &resp); err != nil || resp.AssetID == "" {
				continue
			}
			book := mapRawBook(resp, received)
			s.mu.Lock()
			s.books[book.TokenID] = book
			s.mu.Unlock()

		case "price_change":
			var pc priceChangeEvent
			if err := json.Unmarshal(ev, &pc); err != nil {
				continue
			}
			s.applyPriceChange(pc, received)
		}
	}
}

// applyPriceChange aplica cada cambio de nivel al ladder de su token. Los tokens
// sin snapshot todavía se ignoran: el primer "book" trae el estado completo.
func (s *BookStream) applyPriceChange(pc priceChangeEvent, received time.Time) {
	ts := parseTimestamp(pc.Timestamp, received)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range pc.changes() {
		assetID := ch.AssetID
		if assetID == "" {
			assetID = pc.AssetID
		}
		book, ok := s.books[assetID]
		if !ok {
			continue
		}
		updated, err := applyLevelChange(book, ch)
		if err != nil {
			slog.Debug("book stream: price_change skipped", "asset", assetID, "err", err)
			continue
		}
		if ts.After(updated.Timestamp) {
			updated.Timestamp = ts
		}
		s.books[assetID] = updated
	}
}

// touch adelanta el timestamp de todos los ladders al instante de recepción.
func (s *BookStream) touch(received time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, book := range s.books {
		if received.After(book.Timestamp) {
			book.Timestamp = received
			s.books[id] = book
		}
	}
}
