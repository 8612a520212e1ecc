package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
)

// Conversation state lives in an external keyed store so a restart does not
// strand users mid-survey. The TTL bounds abandoned flows.
const (
	conversationPrefix = "conv:"
	conversationTTL    = 2 * time.Hour
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepo struct {
	client *goredis.Client
}

func NewConversationRepo(client *goredis.Client) *ConversationRepo {
	return &ConversationRepo{client: client}
}

func (r *ConversationRepo) Set(ctx context.Context, userID int64, state model.ConversationState) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || !state.Flow.Valid() || !state.Step.Valid() {
		return fmt.Errorf("invalid conversation state")
	}

	fields := map[string]interface{}{
		"flow":       string(state.Flow),
		"step":       string(state.Step),
		"started_at": state.StartedAt.Unix(),
	}
	if state.SleepQuality != nil {
		fields["sleep_quality"] = *state.SleepQuality
	}
	if state.MoodScore != nil {
		fields["mood_score"] = *state.MoodScore
	}

	key := conversationKey(userID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set conversation state: %w", err)
	}

	return nil
}

func (r *ConversationRepo) Get(ctx context.Context, userID int64) (model.ConversationState, error) {
	if r.client == nil {
		return model.ConversationState{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, conversationKey(userID)).Result()
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("get conversation hash: %w", err)
	}
	if len(values) == 0 {
		return model.ConversationState{}, ErrConversationNotFound
	}

	return parseConversationState(values)
}

func (r *ConversationRepo) Clear(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.client.Del(ctx, conversationKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear conversation state: %w", err)
	}
	return nil
}

func conversationKey(userID int64) string {
	return conversationPrefix + strconv.FormatInt(userID, 10)
}

func parseConversationState(values map[string]string) (model.ConversationState, error) {
	flow := enums.SurveyFlow(strings.TrimSpace(values["flow"]))
	step := enums.ConversationStep(strings.TrimSpace(values["step"]))
	if !flow.Valid() || !step.Valid() {
		return model.ConversationState{}, fmt.Errorf("corrupt conversation state: flow=%q step=%q", values["flow"], values["step"])
	}

	state := model.ConversationState{Flow: flow, Step: step}

	if raw := values["started_at"]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.ConversationState{}, fmt.Errorf("parse conversation started_at: %w", err)
		}
		state.StartedAt = time.Unix(unix, 0).UTC()
	}
	if raw := values["sleep_quality"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.ConversationState{}, fmt.Errorf("parse conversation sleep_quality: %w", err)
		}
		state.SleepQuality = &n
	}
	if raw := values["mood_score"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.ConversationState{}, fmt.Errorf("parse conversation mood_score: %w", err)
		}
		state.MoodScore = &n
	}

	return state, nil
}
