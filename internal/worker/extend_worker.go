package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/cobardes/radia-fm-sub000/internal/orchestrator"
	"github.com/cobardes/radia-fm-sub000/internal/service"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

// ExtendWorker processes queue extension tasks.
type ExtendWorker struct {
	orchestrator *orchestrator.Orchestrator
}

func NewExtendWorker(orch *orchestrator.Orchestrator) *ExtendWorker {
	return &ExtendWorker{orchestrator: orch}
}

// ProcessTask runs one extension pass. A run already in progress is not a
// failure; retrying it would only be refused again, so it completes the task.
func (w *ExtendWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ExtendTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("[Worker] starting extension for station %s", payload.StationID)

	if err := w.orchestrator.Run(ctx, payload.StationID); err != nil {
		if errors.Is(err, store.ErrExtensionInProgress) {
			log.Printf("[Worker] station %s already extending, skipping", payload.StationID)
			return nil
		}
		log.Printf("[Worker] extension failed for station %s: %v", payload.StationID, err)
		return err
	}

	log.Printf("[Worker] extension complete for station %s", payload.StationID)
	return nil
}
