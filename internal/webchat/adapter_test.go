package webchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

type recordingMessenger struct {
	recipients []string
}

func (r *recordingMessenger) Send(_ context.Context, recipient, _ string) error {
	r.recipients = append(r.recipients, recipient)
	return nil
}

func TestReplyMessengerRoutesByChannel(t *testing.T) {
	fallback := &recordingMessenger{}
	m := NewReplyMessenger(NewHub(), fallback, logging.Discard())

	require.NoError(t, m.Send(context.Background(), SenderID("s1"), "hello"))
	require.NoError(t, m.Send(context.Background(), "85290001111", "hello"))

	assert.Equal(t, []string{"85290001111"}, fallback.recipients)
}

func TestSenderID(t *testing.T) {
	assert.Equal(t, "web:abc", SenderID("abc"))
	assert.True(t, IsWebSender("web:abc"))
	assert.False(t, IsWebSender("85290001111"))
}
