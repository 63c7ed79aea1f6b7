// Package redisbus publica cada evaluación en Redis: Pub/Sub para los
// consumidores en vivo y una clave con la última señal por token para quien
// llegue tarde.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultChannel es el canal Pub/Sub si la config no indica otro.
	DefaultChannel = "polyslip:signals"

	latestKeyPrefix = "polyslip:latest:"
	latestTTL       = 5 * time.Minute
)

// Publisher implementa ports.SignalPublisher sobre go-redis.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// New conecta con Redis y verifica la conexión con un PING.
func New(ctx context.Context, addr, channel string) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbus.New: ping %s: %w", addr, err)
	}
	return NewWithClient(rdb, channel), nil
}

// NewWithClient envuelve un cliente ya creado.
func NewWithClient(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Publish serializa la evaluación, la publica en el canal y actualiza la
// clave de última señal del token en un único pipeline.
func (p *Publisher) Publish(ctx context.Context, eval domain.Evaluation) error {
	payload, err := Encode(eval)
	if err != nil {
		return fmt.Errorf("redisbus.Publish: %w", err)
	}

	_, err = p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.Set(ctx, LatestKey(eval.TokenID), payload, latestTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisbus.Publish: %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe devuelve un canal con las evaluaciones publicadas. Se cierra al
// cancelar ctx. Los mensajes que no se pueden decodificar se descartan.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan SignalMessage, error) {
	pubsub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisbus.Subscribe %s: %w", p.channel, err)
	}

	out := make(chan SignalMessage, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				decoded, err := Decode([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- decoded:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Latest lee la última señal publicada para un token. Devuelve redis.Nil si
// no hay ninguna vigente.
func (p *Publisher) Latest(ctx context.Context, tokenID string) (SignalMessage, error) {
	raw, err := p.rdb.Get(ctx, LatestKey(tokenID)).Bytes()
	if err != nil {
		return SignalMessage{}, fmt.Errorf("redisbus.Latest %s: %w", tokenID, err)
	}
	return Decode(raw)
}

// Close cierra la conexión.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// LatestKey es la clave donde se guarda la última señal de un token.
func LatestKey(tokenID string) string {
	return latestKeyPrefix + tokenID
}

// SignalMessage es el formato JSON publicado. Precios y tamaños van como
// strings decimales.
type SignalMessage struct {
	ID          string    `json:"id"`
	TokenID     string    `json:"token_id"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	ComputedAt  time.Time `json:"computed_at"`

	Condition       string  `json:"condition"`
	Confirmed       string  `json:"confirmed"`
	Direction       string  `json:"direction"`
	VolumeImbalance float64 `json:"volume_imbalance"`
	PricePressure   float64 `json:"price_pressure"`
	EffectiveSpread float64 `json:"effective_spread"`
	Concentration   float64 `json:"concentration"`
	BestBid         string  `json:"best_bid"`
	BestAsk         string  `json:"best_ask"`

	ShouldTrade bool   `json:"should_trade"`
	Side        string `json:"side,omitempty"`
	LimitPrice  string `json:"limit_price,omitempty"`
	Size        string `json:"size,omitempty"`
	Reason      string `json:"reason"`

	LatencyUS int64 `json:"latency_us"`
}

// Encode convierte una evaluación al mensaje publicado.
func Encode(e domain.Evaluation) ([]byte, error) {
	s, d := e.Signal, e.Decision
	msg := SignalMessage{
		ID:              e.ID,
		TokenID:         e.TokenID,
		EvaluatedAt:     e.EvaluatedAt,
		ComputedAt:      s.ComputedAt,
		Condition:       s.Condition.String(),
		Confirmed:       e.Confirmed.String(),
		Direction:       s.Direction.String(),
		VolumeImbalance: s.VolumeImbalance,
		PricePressure:   s.PricePressure,
		EffectiveSpread: s.EffectiveSpread,
		Concentration:   s.Concentration,
		BestBid:         s.BestBid.String(),
		BestAsk:         s.BestAsk.String(),
		ShouldTrade:     d.ShouldTrade,
		Reason:          d.Reason,
		LatencyUS:       e.Latency.Microseconds(),
	}
	if d.ShouldTrade {
		msg.Side = d.Side.String()
		msg.LimitPrice = d.LimitPrice.String()
		msg.Size = d.Size.String()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation %s: %w", e.ID, err)
	}
	return payload, nil
}

// Decode es la inversa de Encode.
func Decode(payload []byte) (SignalMessage, error) {
	var msg SignalMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SignalMessage{}, fmt.Errorf("decode signal: %w", err)
	}
	return msg, nil
}
