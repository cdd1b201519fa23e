package telemetry

import contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"

const Masked = "***"

// Redact copies params, masking the values the intent marks as sensitive.
func Redact(params map[string]string, r contractx.Redaction) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if r.Masks(k) {
			out[k] = Masked
			continue
		}
		out[k] = v
	}
	return out
}
