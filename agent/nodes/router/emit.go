package routernode

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// emit records one stage event. A sink that panics is logged and skipped;
// telemetry never fails a turn.
func emit(ctx context.Context, emitter contractx.Emitter, st *GraphState, stage contractx.Stage, level contractx.Level, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().
				Str("stage", string(stage)).
				Str("panic", fmt.Sprint(r)).
				Msg("telemetry sink panicked")
		}
	}()

	emitter.Record(ctx, contractx.Event{
		Timestamp:     st.Now().UTC(),
		InteractionID: st.Interaction.ID,
		SessionID:     st.SessionID,
		Stage:         stage,
		Level:         level,
		Payload:       payload,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
