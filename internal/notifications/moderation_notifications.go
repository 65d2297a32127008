package notifications

import (
	"context"
	"errors"
	"fmt"

	"nightmap/internal/events"

	"github.com/9ssi7/exponent"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoPushTokens = errors.New("no push tokens")

// TokenLookup is the slice of the push token store the notifier needs.
type TokenLookup interface {
	GetTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error)
}

// SendDecisionNotification tells the submitter that their venue was approved
// or rejected.
func SendDecisionNotification(ctx context.Context, push PushSender, tokens TokenLookup, userID, poiID uuid.UUID, status, venueName string) error {
	tokensMap, err := tokens.GetTokensByUserIDs(ctx, []uuid.UUID{userID})
	if err != nil {
		return err
	}
	userTokens := tokensMap[userID]
	if len(userTokens) == 0 {
		return ErrNoPushTokens
	}

	var title, body string
	switch status {
	case "approved":
		title = "Venue Approved"
		body = fmt.Sprintf("%s is now live on the map! 🎉", venueName)
	case "rejected":
		title = "Venue Not Approved"
		body = fmt.Sprintf("Your submission %s was not approved.", venueName)
	default:
		title = "Submission Update"
		body = fmt.Sprintf("Your submission %s has an update.", venueName)
	}

	msgs := make([]*exponent.Message, 0, len(userTokens))
	for _, t := range userTokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			// drives deep linking when the notification is tapped
			Data: map[string]string{
				"type":   "submission",
				"status": status,
				"poiId":  poiID.String(),
				"screen": "my-submissions-screen",
			},
		})
	}

	_, err = push.Publish(ctx, msgs)
	return err
}

// DecisionNotifier pushes moderation decisions to submitters. It ignores
// every other event.
type DecisionNotifier struct {
	push   PushSender
	tokens TokenLookup
	logger *zap.SugaredLogger
}

func NewDecisionNotifier(push PushSender, tokens TokenLookup, logger *zap.SugaredLogger) *DecisionNotifier {
	return &DecisionNotifier{push: push, tokens: tokens, logger: logger}
}

func (n *DecisionNotifier) Emit(ctx context.Context, e events.Event) {
	var status string
	switch e.Name {
	case events.SubmissionApproved:
		status = "approved"
	case events.SubmissionRejected:
		status = "rejected"
	default:
		return
	}
	if e.SubmitterID == uuid.Nil {
		return
	}

	err := SendDecisionNotification(ctx, n.push, n.tokens, e.SubmitterID, e.POIID, status, e.Detail)
	switch {
	case errors.Is(err, ErrNoPushTokens):
		n.logger.Debugw("submitter has no push tokens", "user_id", e.SubmitterID)
	case err != nil:
		n.logger.Errorw("push notification failed", "user_id", e.SubmitterID, "poi_id", e.POIID, "error", err)
	}
}
