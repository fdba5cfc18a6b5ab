package chatserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/shop-chat/internal/chat"
)

type stubAI struct {
	reply string
	err   error
}

func (s stubAI) Reply(context.Context, []chat.Message, string) (string, error) {
	return s.reply, s.err
}

func TestCannedMatching(t *testing.T) {
	r := NewCannedResponder(nil)

	cases := map[string]string{
		"Where is my ORDER?":        "Orders",
		"how long does shipping take": "3-5 business days",
		"I want a refund":           "Returns are free",
		"which payment methods":     "cards",
		"can I talk to a human":     "support team",
	}

	for text, want := range cases {
		reply, err := r.Reply(context.Background(), nil, text)
		require.NoError(t, err)
		assert.Contains(t, reply, want, "text=%q", text)
	}
}

func TestUnmatchedFallsBackToAI(t *testing.T) {
	r := NewCannedResponder(stubAI{reply: "ai says hi"})
	reply, err := r.Reply(context.Background(), nil, "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "ai says hi", reply)
}

func TestUnmatchedWithoutAI(t *testing.T) {
	r := NewCannedResponder(nil)
	reply, err := r.Reply(context.Background(), nil, "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)
}

func TestAIFailureDegradesToHelpText(t *testing.T) {
	r := NewCannedResponder(stubAI{err: errors.New("quota")})
	reply, err := r.Reply(context.Background(), nil, "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)
}
