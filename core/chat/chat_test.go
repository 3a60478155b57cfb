package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/numbot/core/dialogue"
)

func TestOutboundFunc(t *testing.T) {
	var got []string
	out := OutboundFunc(func(_ context.Context, to dialogue.ConversationID, text string) error {
		got = append(got, to.String()+":"+text)
		return nil
	})
	require.NoError(t, out.Send(context.Background(), 42, "hi"))
	assert.Equal(t, []string{"42:hi"}, got)
}

func TestSendErrorUnwrap(t *testing.T) {
	cause := errors.New("forbidden: bot was blocked by the user")
	var err error = &SendError{To: 7, Code: CodeForbidden, Err: cause}

	assert.ErrorIs(t, err, cause)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeForbidden, se.Code)
	assert.Contains(t, err.Error(), "TG_FORBIDDEN")
}
