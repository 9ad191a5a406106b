package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/mailer"
	"github.com/hugh/go-magiclink/internal/store/memory"
	"github.com/hugh/go-magiclink/pkg/crypto"
	"github.com/hugh/go-magiclink/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func newTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	key, _, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestDispatcher_SealsPayload(t *testing.T) {
	enc := newTestEncryptor(t)
	q := &recordingEnqueuer{}
	d := &Dispatcher{client: q, encryptor: enc}

	delivery := magiclink.Delivery{
		Email:     "ada@example.com",
		URL:       "https://auth.example.com/auth/verify?token=secret-token",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, d.SendMagicLink(context.Background(), delivery))

	require.Len(t, q.tasks, 1)
	task := q.tasks[0]
	assert.Equal(t, TypeSendMagicLink, task.Type())
	assert.NotContains(t, string(task.Payload()), "secret-token")

	var payload SendMagicLinkPayload
	require.NoError(t, enc.Open(task.Payload(), &payload))
	assert.Equal(t, delivery.URL, payload.URL)
	assert.Equal(t, "ada@example.com", payload.Email)
}

func TestDispatcher_EnqueueFailure(t *testing.T) {
	d := &Dispatcher{client: &recordingEnqueuer{err: errors.New("redis down")}}
	err := d.SendMagicLink(context.Background(), magiclink.Delivery{Email: "a@example.com", ExpiresAt: time.Now().Add(time.Minute)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enqueueing email task")
}

func TestHandleSendMagicLink(t *testing.T) {
	enc := newTestEncryptor(t)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	newHandler := func(m mailer.Mailer) *Handler {
		h := NewHandler(memory.New(), m, enc, util.DiscardLogger())
		h.now = func() time.Time { return now }
		return h
	}

	t.Run("sends email", func(t *testing.T) {
		m := &recordingMailer{}
		task, err := NewSendMagicLinkTask(SendMagicLinkPayload{
			Email:     "ada@example.com",
			Name:      "Ada",
			URL:       "https://auth.example.com/auth/verify?token=t1",
			ExpiresAt: now.Add(15 * time.Minute),
		}, enc)
		require.NoError(t, err)

		require.NoError(t, newHandler(m).HandleSendMagicLink(context.Background(), task))
		require.Len(t, m.sent, 1)
		assert.Equal(t, "ada@example.com", m.sent[0].To)
		assert.Contains(t, m.sent[0].Text, "token=t1")
	})

	t.Run("skips expired links", func(t *testing.T) {
		m := &recordingMailer{}
		task, err := NewSendMagicLinkTask(SendMagicLinkPayload{
			Email:     "late@example.com",
			URL:       "u",
			ExpiresAt: now.Add(-time.Minute),
		}, enc)
		require.NoError(t, err)

		require.NoError(t, newHandler(m).HandleSendMagicLink(context.Background(), task))
		assert.Empty(t, m.sent)
	})

	t.Run("unreadable payload is not retried", func(t *testing.T) {
		task := asynq.NewTask(TypeSendMagicLink, []byte("invalid"))
		err := newHandler(&recordingMailer{}).HandleSendMagicLink(context.Background(), task)
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Contains(t, err.Error(), "unmarshal payload")
	})

	t.Run("mailer error is retried", func(t *testing.T) {
		task, err := NewSendMagicLinkTask(SendMagicLinkPayload{
			Email:     "ada@example.com",
			URL:       "u",
			ExpiresAt: now.Add(time.Minute),
		}, enc)
		require.NoError(t, err)

		err = newHandler(&recordingMailer{err: errors.New("throttled")}).HandleSendMagicLink(context.Background(), task)
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestHandleSendMagicLink_Plaintext(t *testing.T) {
	m := &recordingMailer{}
	h := NewHandler(memory.New(), m, nil, util.DiscardLogger())

	task, err := NewSendMagicLinkTask(SendMagicLinkPayload{
		Email:     "plain@example.com",
		URL:       "u",
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	require.NoError(t, err)

	var decoded SendMagicLinkPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "plain@example.com", decoded.Email)

	require.NoError(t, h.HandleSendMagicLink(context.Background(), task))
	assert.Len(t, m.sent, 1)
}

func TestHandlePurgeMagicLinks(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	user, err := st.CreateUser(ctx, "purge@example.com", "")
	require.NoError(t, err)
	require.NoError(t, st.CreateMagicLink(ctx, &models.MagicLink{UserID: user.ID, Token: "old", ExpiresAt: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, st.CreateMagicLink(ctx, &models.MagicLink{UserID: user.ID, Token: "recent", ExpiresAt: now.Add(-time.Hour)}))

	h := NewHandler(st, &recordingMailer{}, nil, util.DiscardLogger())
	h.now = func() time.Time { return now }

	task, err := NewPurgeMagicLinksTask(168 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.HandlePurgeMagicLinks(ctx, task))

	_, ok := st.MagicLink("old")
	assert.False(t, ok)
	_, ok = st.MagicLink("recent")
	assert.True(t, ok)
}

func TestRegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	NewHandler(memory.New(), &recordingMailer{}, nil, util.DiscardLogger()).RegisterHandlers(mux)

	h, pattern := mux.Handler(asynq.NewTask(TypePurgeMagicLinks, nil))
	assert.NotNil(t, h)
	assert.Equal(t, TypePurgeMagicLinks, pattern)
}
