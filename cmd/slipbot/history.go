package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyslip/internal/adapters/notify"
	"github.com/alejandrodnm/polyslip/internal/ports"
)

// printHistory imprime el diario de evaluaciones de la última ventana.
func printHistory(ctx context.Context, store ports.Storage, console *notify.Console, since time.Duration) error {
	to := time.Now().UTC()
	evals, err := store.GetHistory(ctx, to.Add(-since), to)
	if err != nil {
		return fmt.Errorf("printHistory: %w", err)
	}
	console.PrintHistory(evals)
	return nil
}
