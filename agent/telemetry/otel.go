package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// OTelSink adds each event to the span carried by ctx.
type OTelSink struct{}

var _ contractx.Emitter = OTelSink{}

func (OTelSink) Record(ctx context.Context, ev contractx.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("router.interaction_id", ev.InteractionID),
		attribute.String("router.session_id", ev.SessionID),
		attribute.String("router.level", string(ev.Level)),
	}
	attrs = append(attrs, payloadAttributes(ev.Payload)...)

	span.AddEvent("router."+string(ev.Stage),
		trace.WithTimestamp(ev.Timestamp),
		trace.WithAttributes(attrs...),
	)
}

func payloadAttributes(payload map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := "router.payload." + k
		switch v := payload[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(key, v))
		case nil:
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
				continue
			}
			attrs = append(attrs, attribute.String(key, string(raw)))
		}
	}
	return attrs
}
