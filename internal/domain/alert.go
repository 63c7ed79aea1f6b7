package domain

// AlertKind identifica el tipo de notificación; los notifiers pueden filtrar por él.
type AlertKind string

const (
	AlertStartup    AlertKind = "startup"
	AlertShutdown   AlertKind = "shutdown"
	AlertHeartbeat  AlertKind = "heartbeat"
	AlertCondition  AlertKind = "condition"
	AlertOrder      AlertKind = "order"
	AlertCancel     AlertKind = "cancel"
	AlertSkipped    AlertKind = "skipped"
	AlertError      AlertKind = "error"
	AlertEvaluation AlertKind = "evaluation"
)

// Alert es un mensaje para los canales de notificación.
// Evaluation es opcional: solo las alertas derivadas de una evaluación la llevan.
type Alert struct {
	Kind       AlertKind
	Title      string
	Message    string
	Evaluation *Evaluation
}
