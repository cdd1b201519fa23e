package intents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const multiChannel = `
intents:
  - id: order_status
    description: Check order status
    required_parameters: [order_id]
    action_name: check_order_status
    constraints:
      channels: [chat]
  - id: refund
    description: Request a refund
    action_name: request_refund
    constraints:
      channels: [email, chat]
  - id: faq
    description: Answer a question
    action_name: answer_faq
`

func interaction(channel string) contractx.Interaction {
	in := contractx.Interaction{ID: "u-1", Text: "hi"}
	if channel != "" {
		in.Context = map[string]string{contractx.ContextChannel: channel}
	}
	return in
}

func ids(intents []contractx.Intent) []string {
	out := make([]string, 0, len(intents))
	for _, it := range intents {
		out = append(out, it.ID)
	}
	return out
}

func TestEligibleFiltersByChannelPreservingOrder(t *testing.T) {
	t.Parallel()

	r, err := Parse([]byte(multiChannel))
	require.NoError(t, err)

	got, err := r.Eligible(context.Background(), interaction("chat"))
	require.NoError(t, err)
	assert.Equal(t, []string{"order_status", "refund", "faq"}, ids(got))

	got, err = r.Eligible(context.Background(), interaction("email"))
	require.NoError(t, err)
	assert.Equal(t, []string{"refund", "faq"}, ids(got))

	got, err = r.Eligible(context.Background(), interaction("voice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"faq"}, ids(got))

	// channel defaults to chat
	got, err = r.Eligible(context.Background(), interaction(""))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestEligibleEmpty(t *testing.T) {
	t.Parallel()

	r, err := Parse([]byte("intents: []"))
	require.NoError(t, err)
	got, err := r.Eligible(context.Background(), interaction("chat"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("intents:\n  - id: a\n"))
	assert.ErrorIs(t, err, ErrInvalidIntent)

	_, err = Parse([]byte("intents:\n  - {id: a, action_name: x}\n  - {id: a, action_name: y}\n"))
	assert.ErrorIs(t, err, ErrDuplicateIntent)

	_, err = Parse([]byte("intents:\n  - {id: a, action_name: x, phrasing: {post_generic: nothing}}\n"))
	assert.ErrorIs(t, err, contractx.ErrValidation)

	_, err = Parse([]byte("intents:\n  - {id: a, action_name: x, phrasing: {pre: 'Looking that up.', post_generic: '{summary}'}}\n"))
	assert.ErrorIs(t, err, contractx.ErrValidation)

	_, err = Parse([]byte("intents: [::"))
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	r, err := Default()
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 1)
	order := all[0]
	assert.Equal(t, "order_status", order.ID)
	assert.Equal(t, "check_order_status", order.ActionName)
	assert.Equal(t, []string{"order_id"}, order.RequiredParameters)
	assert.Contains(t, order.SlotPatterns, "order_id")
	assert.Contains(t, r.Phrasing(), "order_status")
	assert.Equal(t, "check the delivery status of an existing order", r.Describe())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "intents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(multiChannel), 0o600))

	r, err := Load(Config{Path: path})
	require.NoError(t, err)
	assert.Len(t, r.All(), 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
