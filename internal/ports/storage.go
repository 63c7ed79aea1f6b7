package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

// Storage persiste el diario de evaluaciones (señal + decisión, nunca el book).
type Storage interface {
	// SaveEvaluation persiste una evaluación.
	SaveEvaluation(ctx context.Context, eval domain.Evaluation) error

	// GetHistory devuelve las evaluaciones registradas en el rango de tiempo dado.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.Evaluation, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
