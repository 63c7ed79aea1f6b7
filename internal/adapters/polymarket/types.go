package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB REST ---

// orderBookResponse es la respuesta de GET /book y el cuerpo del evento "book" del websocket.
type orderBookResponse struct {
	EventType string         `json:"event_type,omitempty"`
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"` // milisegundos unix como string
}

// bookEntryRaw: la API devuelve price y size como strings.
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// lastTradePriceResponse es la respuesta de GET /last-trade-price.
type lastTradePriceResponse struct {
	Price json.Number `json:"price"`
	Side  string      `json:"side"`
}

// midpointResponse es la respuesta de GET /midpoint.
type midpointResponse struct {
	Mid json.Number `json:"mid"`
}

// --- WebSocket ---

// subscribeMessage es el mensaje inicial del canal market.
type subscribeMessage struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// wsEnvelope identifica el tipo de evento antes de decodificarlo entero.
type wsEnvelope struct {
	MsgType   string `json:"msg_type"`
	EventType string `json:"event_type"`
}

// priceChangeEvent es el evento incremental del canal market. El formato viejo
// trae asset_id arriba y los cambios en "changes"; el actual trae el asset en
// cada entrada de "price_changes".
type priceChangeEvent struct {
	AssetID      string           `json:"asset_id"`
	Timestamp    string           `json:"timestamp"`
	Changes      []priceChangeRaw `json:"changes"`
	PriceChanges []priceChangeRaw `json:"price_changes"`
}

func (e priceChangeEvent) changes() []priceChangeRaw {
	if len(e.PriceChanges) > 0 {
		return e.PriceChanges
	}
	return e.Changes
}

// priceChangeRaw es el nuevo tamaño total de un nivel; size "0" lo elimina.
type priceChangeRaw struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Side    string `json:"side"` // BUY → bids, SELL → asks
	Size    string `json:"size"`
}
