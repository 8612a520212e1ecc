package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/infra/telegram"
)

// Outcome classifies a dispatch attempt. Unreachable is permanent for the
// user; the caller may still record lifecycle flags so the warning is not
// retried forever. Failed is transient and should be retried on a later tick.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeUnreachable
	OutcomeFailed
)

func (o Outcome) Permanent() bool { return o != OutcomeFailed }

type Gateway interface {
	Probe(ctx context.Context, chatID int64) error
	Send(ctx context.Context, chatID int64, out telegram.Outbound) error
}

type Content interface {
	ForEvent(kind enums.EventKind, user model.User, trial bool) telegram.Outbound
}

type UserStore interface {
	MarkUnreachable(ctx context.Context, id int64) error
}

type ConversationStore interface {
	Set(ctx context.Context, userID int64, state model.ConversationState) error
}

type Service struct {
	gateway       Gateway
	content       Content
	users         UserStore
	conversations ConversationStore
	log           *zap.Logger
	now           func() time.Time
}

func NewService(gateway Gateway, content Content, users UserStore, conversations ConversationStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		gateway:       gateway,
		content:       content,
		users:         users,
		conversations: conversations,
		log:           log,
		now:           time.Now,
	}
}

// Dispatch probes the chat, sends the rendered message and, for survey kinds,
// opens the conversation so the next inbound update lands in the right step.
// A permanent delivery failure durably marks the user unreachable.
func (s *Service) Dispatch(ctx context.Context, user model.User, kind enums.EventKind, trial bool) (Outcome, error) {
	if s.gateway == nil || s.content == nil {
		return OutcomeFailed, fmt.Errorf("notifier is not wired")
	}

	if err := s.gateway.Probe(ctx, user.ID); err != nil {
		return s.classify(ctx, user, kind, err)
	}

	out := s.content.ForEvent(kind, user, trial)
	if err := s.gateway.Send(ctx, user.ID, out); err != nil {
		return s.classify(ctx, user, kind, err)
	}

	if kind.Survey() {
		if err := s.openConversation(ctx, user.ID, kind); err != nil {
			// Delivery already happened; a stranded flow only costs one
			// unanswered prompt.
			s.log.Warn("open survey conversation",
				zap.Int64("user_id", user.ID),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}

	return OutcomeSent, nil
}

func (s *Service) classify(ctx context.Context, user model.User, kind enums.EventKind, err error) (Outcome, error) {
	if errors.Is(err, telegram.ErrUnreachable) {
		if s.users != nil {
			if markErr := s.users.MarkUnreachable(ctx, user.ID); markErr != nil {
				return OutcomeUnreachable, fmt.Errorf("mark user unreachable: %w", markErr)
			}
		}
		s.log.Info("user marked unreachable",
			zap.Int64("user_id", user.ID),
			zap.String("kind", string(kind)))
		return OutcomeUnreachable, nil
	}

	s.log.Warn("notification delivery failed",
		zap.Int64("user_id", user.ID),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return OutcomeFailed, err
}

func (s *Service) openConversation(ctx context.Context, userID int64, kind enums.EventKind) error {
	if s.conversations == nil {
		return nil
	}

	flow := enums.FlowForEvent(kind)
	return s.conversations.Set(ctx, userID, model.ConversationState{
		Flow:      flow,
		Step:      enums.FirstStep(flow),
		StartedAt: s.now().UTC(),
	})
}
