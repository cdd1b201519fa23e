package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const (
	confidenceMatched = 0.8
	confidenceDefault = 0.5
)

// Heuristic walks the eligible intents in order and picks the first one whose
// keywords or slot patterns match the text. An intent without keywords always
// matches. Parameters come from the intent's slot patterns.
type Heuristic struct {
	patterns *xsync.MapOf[string, *regexp.Regexp]
}

var _ contractx.Classifier = (*Heuristic)(nil)

func NewHeuristic() *Heuristic {
	return &Heuristic{patterns: xsync.NewMapOf[string, *regexp.Regexp]()}
}

func (h *Heuristic) Classify(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, _ []contractx.Message) (contractx.Classification, error) {
	if err := ctx.Err(); err != nil {
		return contractx.Classification{}, err
	}
	text := strings.TrimSpace(in.Text)

	for i := range eligible {
		intent := eligible[i]
		params := h.extract(ctx, intent, text)

		confidence := confidenceDefault
		if len(intent.Keywords) > 0 {
			if !hasKeyword(text, intent.Keywords) && len(params) == 0 {
				continue
			}
			confidence = confidenceMatched
		}

		return contractx.Classification{
			Intent:            &intent,
			Parameters:        params,
			MissingParameters: missingFor(intent, params),
			Confidence:        confidence,
		}, nil
	}
	return contractx.Classification{}, nil
}

func (h *Heuristic) extract(ctx context.Context, intent contractx.Intent, text string) map[string]string {
	params := make(map[string]string, len(intent.SlotPatterns))
	for slot, pattern := range intent.SlotPatterns {
		re := h.compile(ctx, pattern)
		if re == nil {
			continue
		}
		if m := re.FindString(text); m != "" {
			params[slot] = m
		}
	}
	return params
}

// compile caches compiled patterns; a pattern that fails to compile is cached
// as nil and skipped.
func (h *Heuristic) compile(ctx context.Context, pattern string) *regexp.Regexp {
	re, _ := h.patterns.LoadOrCompute(pattern, func() *regexp.Regexp {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("pattern", pattern).Msg("invalid slot pattern")
			return nil
		}
		return compiled
	})
	return re
}

func hasKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
