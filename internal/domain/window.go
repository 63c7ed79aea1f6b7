package domain

// SignalWindow es un ring buffer con las últimas K señales. Lo posee el caller
// (el loop del bot) y se pasa por referencia a la capa de suavizado; el motor
// nunca guarda estado propio. No es seguro para uso concurrente.
type SignalWindow struct {
	buf   []MarketSignal
	next  int
	count int
}

// NewSignalWindow crea una ventana de capacidad size (mínimo 1).
func NewSignalWindow(size int) *SignalWindow {
	if size < 1 {
		size = 1
	}
	return &SignalWindow{buf: make([]MarketSignal, size)}
}

// Push añade una señal, sobrescribiendo la más antigua si está llena.
func (w *SignalWindow) Push(s MarketSignal) {
	w.buf[w.next] = s
	w.next = (w.next + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Len devuelve cuántas señales hay guardadas.
func (w *SignalWindow) Len() int { return w.count }

// Last devuelve las últimas n señales, de la más reciente a la más antigua.
func (w *SignalWindow) Last(n int) []MarketSignal {
	if n > w.count {
		n = w.count
	}
	out := make([]MarketSignal, 0, n)
	for i := 1; i <= n; i++ {
		idx := (w.next - i + len(w.buf)) % len(w.buf)
		out = append(out, w.buf[idx])
	}
	return out
}

// Reset vacía la ventana sin reasignar memoria.
func (w *SignalWindow) Reset() {
	w.next = 0
	w.count = 0
}
