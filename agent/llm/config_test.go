package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{APIKey: "k"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{APIKey: "k", ClassifierModel: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestForClassifierOverrides(t *testing.T) {
	t.Parallel()

	base := Config{
		APIKey:                " key ",
		Model:                 "openai/gpt-4o-mini",
		MaxCompletionToken:    256,
		Temperature:           0.4,
		ClassifierTemperature: -1,
	}

	got := base.ForClassifier()
	if got.Model != "openai/gpt-4o-mini" || got.Temperature != 0.4 || got.APIKey != "key" {
		t.Fatalf("ForClassifier() = %+v", got)
	}
	if got.MaxCompletionToken == nil || *got.MaxCompletionToken != 256 {
		t.Fatalf("unexpected max tokens: %v", got.MaxCompletionToken)
	}
	if !got.JSONMode {
		t.Fatal("classifier must request JSON mode")
	}

	base.ClassifierModel = "meta-llama/llama-3.1-8b-instruct"
	base.ClassifierTemperature = 0
	got = base.ForClassifier()
	if got.Model != "meta-llama/llama-3.1-8b-instruct" || got.Temperature != 0 {
		t.Fatalf("override not applied: %+v", got)
	}
}
