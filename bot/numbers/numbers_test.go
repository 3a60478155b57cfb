package numbers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/numbot/core/chat"
	coredatabase "github.com/m3rciful/numbot/core/database"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/dispatch"
	"github.com/m3rciful/numbot/core/storage"
)

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Send(_ context.Context, _ dialogue.ConversationID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, text)
	return nil
}

func (o *outbox) last(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

type harness struct {
	store dialogue.Store
	out   *outbox
	d     *dispatch.Dispatcher
}

func newHarness(t *testing.T, backend storage.Backend) *harness {
	t.Helper()
	store := dialogue.NewStore(backend, Schema(), dialogue.StoreOptions{OpTimeout: time.Second})
	out := &outbox{}
	d, err := dispatch.New(store, Machine(Commands()), out, dispatch.Options{Initial: Start{}})
	require.NoError(t, err)
	return &harness{store: store, out: out, d: d}
}

func (h *harness) send(t *testing.T, id dialogue.ConversationID, text string) string {
	t.Helper()
	require.NoError(t, h.d.Process(context.Background(), chat.Message{ConversationID: id, Text: text}))
	return h.out.last(t)
}

func (h *harness) state(t *testing.T, id dialogue.ConversationID) dialogue.State {
	t.Helper()
	st, err := dialogue.Open(id, h.store, Start{}).Current(context.Background())
	require.NoError(t, err)
	return st
}

func TestStartRemembersNumber(t *testing.T) {
	h := newHarness(t, storage.NewMemory())

	assert.Equal(t, "Remembered number 42. Now use /get or /reset.", h.send(t, 1, "42"))
	assert.Equal(t, GotNumber{Value: 42}, h.state(t, 1))
}

func TestStartRejectsNonNumbers(t *testing.T) {
	h := newHarness(t, storage.NewMemory())

	for _, text := range []string{"hello", "/get", " 42", "42 ", "2147483648", "4.2", ""} {
		assert.Equal(t, "Please, send me a number.", h.send(t, 1, text), "%q", text)
		assert.Equal(t, Start{}, h.state(t, 1), "%q", text)
	}
	assert.Equal(t, "Remembered number -2147483648. Now use /get or /reset.", h.send(t, 1, "-2147483648"))
}

func TestGotNumberCommands(t *testing.T) {
	h := newHarness(t, storage.NewMemory())
	h.send(t, 1, "7")

	assert.Equal(t, "Here is your number: 7.", h.send(t, 1, "/get"))
	assert.Equal(t, "List of events: 7.", h.send(t, 1, "/list"))
	assert.Equal(t, GotNumber{Value: 7}, h.state(t, 1))

	assert.Equal(t, "Number reset.", h.send(t, 1, "/reset"))
	assert.Equal(t, Start{}, h.state(t, 1))
	assert.Equal(t, "Please, send me a number.", h.send(t, 1, "/get"))
}

func TestGotNumberInvalidInput(t *testing.T) {
	h := newHarness(t, storage.NewMemory())
	h.send(t, 1, "7")

	for _, text := range []string{"banana", "/GET", "/get now", "/help", "8", ""} {
		assert.Equal(t, "Please, send /get, /reset or /list.", h.send(t, 1, text), "%q", text)
		assert.Equal(t, GotNumber{Value: 7}, h.state(t, 1), "%q", text)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	h := newHarness(t, storage.NewMemory())

	h.send(t, 1, "1")
	h.send(t, 2, "2")
	assert.Equal(t, "Here is your number: 1.", h.send(t, 1, "/get"))
	assert.Equal(t, "Here is your number: 2.", h.send(t, 2, "/get"))
	h.send(t, 1, "/reset")
	assert.Equal(t, Start{}, h.state(t, 1))
	assert.Equal(t, GotNumber{Value: 2}, h.state(t, 2))
}

func TestStateSurvivesRestart(t *testing.T) {
	target := coredatabase.SQLiteTarget(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, coredatabase.RunMigrations(target))

	open := func() *storage.SQL {
		db, err := coredatabase.Connect(target)
		require.NoError(t, err)
		return storage.NewSQL(db)
	}

	first := open()
	h := newHarness(t, first)
	h.send(t, 9, "42")
	require.NoError(t, first.Close())

	second := open()
	t.Cleanup(func() { _ = second.Close() })
	h = newHarness(t, second)
	assert.Equal(t, "Here is your number: 42.", h.send(t, 9, "/get"))
}

func TestPersistedLayout(t *testing.T) {
	backend := storage.NewMemory()
	h := newHarness(t, backend)
	h.send(t, 3, "7")

	raw, err := backend.Get(context.Background(), "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"kind":"got_number","data":{"value":7}}`, string(raw))
}

type brokenBackend struct{ storage.Backend }

func (brokenBackend) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestStoreFailureSendsNoConfirmation(t *testing.T) {
	backend := brokenBackend{storage.NewMemory()}
	store := dialogue.NewStore(backend, Schema(), dialogue.StoreOptions{})
	out := &outbox{}
	d, err := dispatch.New(store, Machine(Commands()), out, dispatch.Options{Initial: Start{}})
	require.NoError(t, err)

	err = d.Process(context.Background(), chat.Message{ConversationID: 1, Text: "5"})
	var se *dialogue.StoreError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, out.sent)
}

func TestCommandsMetadata(t *testing.T) {
	set := Commands()
	assert.Equal(t, []string{"/get", "/reset", "/list"}, set.Triggers())
	assert.Equal(t,
		"These commands are supported:\n/get — get your number.\n/reset — reset your number.\n/list — list of events.",
		set.Help(HelpHeader))
	assert.Equal(t, []string{RuleStart, RuleGet, RuleReset, RuleList, RuleInvalid}, Machine(set).Rules())
}
