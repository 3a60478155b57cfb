package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/numbot/core/chat"
)

type fakeClient struct {
	to   tele.Recipient
	what interface{}
	err  error
}

func (f *fakeClient) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to, f.what = to, what
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{Text: fmt.Sprint(what)}, nil
}

func TestSendDelivers(t *testing.T) {
	client := &fakeClient{}
	require.NoError(t, New(client).Send(context.Background(), 42, "hello"))
	assert.Equal(t, "42", client.to.Recipient())
	assert.Equal(t, "hello", client.what)
}

func TestSendWrapsFailures(t *testing.T) {
	cause := &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	err := New(&fakeClient{err: cause}).Send(context.Background(), 7, "x")

	var se *chat.SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, chat.CodeForbidden, se.Code)
	assert.EqualValues(t, 7, se.To)
	assert.ErrorIs(t, err, cause)
}

func TestSendCancelledContext(t *testing.T) {
	client := &fakeClient{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(client).Send(ctx, 1, "x")
	var se *chat.SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, chat.CodeCancelled, se.Code)
	assert.Nil(t, client.to, "nothing should be sent on a cancelled context")
}

func TestSendCode(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"flood", tele.FloodError{RetryAfter: 3}, chat.CodeRateLimited},
		{"too many", &tele.Error{Code: 429}, chat.CodeRateLimited},
		{"bad request", &tele.Error{Code: 400}, chat.CodeBadRequest},
		{"server", &tele.Error{Code: 502}, chat.CodeTransient},
		{"parsed code", errors.New("telegram: chat not found (400)"), chat.CodeBadRequest},
		{"dial", dialErr, chat.CodeTransient},
		{"deadline", context.DeadlineExceeded, chat.CodeTransient},
		{"cancelled", context.Canceled, chat.CodeCancelled},
		{"other", errors.New("boom"), chat.CodeSendInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sendCode(tc.err))
		})
	}
}

func TestRedactToken(t *testing.T) {
	msg := `Post "https://api.telegram.org/bot123456:AA-bb_CC/sendMessage": timeout`
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`, RedactToken(msg))
	assert.Empty(t, sanitizeErrorMessage(nil))
}
