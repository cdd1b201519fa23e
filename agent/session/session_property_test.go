package session

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

func propertyParams() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

// Property: params after N merges == left fold of overwrite-union, however the
// merges are batched.
func TestMergeIsLeftFold(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("merge equals overwrite-union fold", prop.ForAll(
		func(batches []map[string]string) bool {
			want := map[string]string{}
			for _, b := range batches {
				for k, v := range b {
					want[k] = v
				}
			}

			one := NewStore().ForSession("one")
			for _, b := range batches {
				one.Merge(b)
			}

			// same inputs folded into one combined merge
			combined := NewStore().ForSession("combined")
			combined.Merge(want)

			return reflect.DeepEqual(one.Params(), want) && reflect.DeepEqual(combined.Params(), want)
		},
		gen.SliceOf(gen.MapOf(gen.AlphaString(), gen.AlphaString())),
	))

	properties.TestingRun(t)
}

// Property: history is bounded and is the suffix of everything appended.
func TestHistoryIsBoundedSuffix(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("history keeps the most recent N in order", prop.ForAll(
		func(texts []string, max int) bool {
			h := NewStore(WithMaxHistory(max)).ForSession("s")
			for _, text := range texts {
				h.Append(contractx.Message{Role: contractx.RoleUser, Text: text})
			}

			hist := h.History()
			if len(hist) > max {
				return false
			}
			want := texts
			if len(want) > max {
				want = want[len(want)-max:]
			}
			if len(hist) != len(want) {
				return false
			}
			for i := range want {
				if hist[i].Text != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(1, 25),
	))

	properties.TestingRun(t)
}

// Property: waiting is cleared iff the merge carries a non-empty value for it.
func TestWaitingClearedOnlyByItsParameter(t *testing.T) {
	properties := gopter.NewProperties(propertyParams())

	properties.Property("waiting flag rule", prop.ForAll(
		func(waiting string, batch map[string]string) bool {
			h := NewStore().ForSession("s")
			h.SetWaiting(waiting)
			h.Merge(batch)

			if batch[waiting] != "" {
				return h.Waiting() == ""
			}
			return h.Waiting() == waiting
		},
		gen.Identifier(),
		gen.MapOf(gen.OneConstOf("order_id", "email", "zip"), gen.OneConstOf("", "x", "O-1")),
	))

	properties.TestingRun(t)
}
