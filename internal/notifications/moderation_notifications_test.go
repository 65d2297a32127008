package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nightmap/internal/events"

	"github.com/9ssi7/exponent"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*exponent.Message
	err  error
}

func (f *fakeSender) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msgs...)
	return nil, f.err
}

func (f *fakeSender) PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return f.Publish(ctx, []*exponent.Message{msg})
}

type tokenMap map[uuid.UUID][]string

func (m tokenMap) GetTokensByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string)
	for _, id := range ids {
		if t, ok := m[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func TestSendDecisionNotification(t *testing.T) {
	ctx := context.Background()
	user, poi := uuid.New(), uuid.New()
	tokens := tokenMap{user: {"ExponentPushToken[a]", "ExponentPushToken[b]"}}

	t.Run("one message per token", func(t *testing.T) {
		sender := &fakeSender{}
		err := SendDecisionNotification(ctx, sender, tokens, user, poi, "approved", "Blue Note")
		require.NoError(t, err)

		require.Len(t, sender.sent, 2)
		msg := sender.sent[0]
		assert.Equal(t, "Venue Approved", msg.Title)
		assert.Contains(t, msg.Body, "Blue Note")
		assert.Equal(t, poi.String(), msg.Data["poiId"])
		assert.Equal(t, "approved", msg.Data["status"])
		require.Len(t, msg.To, 1)
		assert.Equal(t, exponent.Token("ExponentPushToken[a]"), *msg.To[0])
	})

	t.Run("no tokens", func(t *testing.T) {
		sender := &fakeSender{}
		err := SendDecisionNotification(ctx, sender, tokens, uuid.New(), poi, "rejected", "Blue Note")
		assert.ErrorIs(t, err, ErrNoPushTokens)
		assert.Empty(t, sender.sent)
	})

	t.Run("publish error is returned", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("expo down")}
		err := SendDecisionNotification(ctx, sender, tokens, user, poi, "rejected", "Blue Note")
		assert.EqualError(t, err, "expo down")
	})
}

func TestDecisionNotifier(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	sender := &fakeSender{}
	n := NewDecisionNotifier(sender, tokenMap{user: {"ExponentPushToken[a]"}}, zap.NewNop().Sugar())

	n.Emit(ctx, events.Event{Name: events.SyncCompleted})
	n.Emit(ctx, events.Event{Name: events.SubmissionApproved})
	assert.Empty(t, sender.sent)

	n.Emit(ctx, events.Event{Name: events.SubmissionRejected, SubmitterID: user, POIID: uuid.New(), Detail: "Toxic Brew"})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Venue Not Approved", sender.sent[0].Title)

	n.Emit(ctx, events.Event{Name: events.SubmissionApproved, SubmitterID: uuid.New()})
	assert.Len(t, sender.sent, 1)
}
