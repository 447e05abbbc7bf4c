package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bandstand/api/internal/mutation"
)

// Processor groups an ordered batch of envelopes under one transaction id
// and applies them sequentially. The id is a client-side correlation handle,
// not a database transaction: each mutation commits independently, and a
// mid-batch failure leaves earlier mutations applied. Callers needing
// atomicity must compose batches that are safe to partially apply.
type Processor struct {
	engine *Engine
}

func NewProcessor(e *Engine) *Processor {
	return &Processor{engine: e}
}

// Process applies the batch in submission order under the caller's
// authority and returns the transaction id on full success. An empty batch
// fails before any id is allocated or any write happens. The first failing
// mutation aborts the remainder; its position is carried in the error.
func (p *Processor) Process(ctx context.Context, caller Caller, batch []mutation.Envelope) (string, error) {
	if len(batch) == 0 {
		return "", ErrEmptyBatch
	}

	txid := uuid.NewString()
	for i, env := range batch {
		if err := p.engine.Apply(ctx, caller, env); err != nil {
			return "", fmt.Errorf("mutation %d: %w", i, err)
		}
	}
	return txid, nil
}
