package routernode

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// Receive records the user message and opens the turn.
func Receive(ctx context.Context, in GraphInput, emitter contractx.Emitter, now func() time.Time) (*GraphState, error) {
	if in.Session == nil {
		return nil, fmt.Errorf("%w: session handle is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Interaction.Text) == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}

	st := &GraphState{
		Interaction: in.Interaction,
		SessionID:   in.Session.ID(),
		Session:     in.Session,
		Now:         now,
	}

	st.Session.Append(contractx.Message{
		Role:      contractx.RoleUser,
		Text:      in.Interaction.Text,
		Timestamp: now().UTC(),
	})
	st.History = st.Session.History()

	emit(ctx, emitter, st, contractx.StageReceived, contractx.LevelInfo, map[string]any{
		"memory": map[string]any{
			"history_count":     len(st.History),
			"params_keys":       sortedKeys(st.Session.Params()),
			"waiting_for_param": st.Session.Waiting(),
		},
	})
	return st, nil
}
