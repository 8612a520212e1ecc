package botapp

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	tginfra "github.com/lubowsky/mood-tracker/internal/infra/telegram"
	redrepo "github.com/lubowsky/mood-tracker/internal/repo/redis"
	contentsvc "github.com/lubowsky/mood-tracker/internal/services/content"
	subssvc "github.com/lubowsky/mood-tracker/internal/services/subscriptions"
)

const helpText = `Команды:
/start - регистрация и пробный доступ
/stats - статистика за 30 дней
/tariffs - доступные тарифы
/settings - настройки уведомлений
/mute - выключить уведомления
/unmute - включить уведомления`

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	if a.bot == nil {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(update.Command)) {
	case "start":
		return a.handleStart(ctx, update)
	case "help":
		return a.bot.SendText(ctx, update.ChatID, helpText)
	case "stats":
		return a.handleStats(ctx, update.ChatID, update.UserID)
	case "tariffs":
		return a.bot.Send(ctx, update.ChatID, a.contentService.Tariffs())
	case "settings":
		return a.handleSettings(ctx, update.ChatID, update.UserID)
	case "mute":
		if err := a.userService.SetNotificationsEnabled(ctx, update.UserID, false); err != nil {
			return err
		}
		return a.bot.SendText(ctx, update.ChatID, "🔕 Уведомления выключены.")
	case "unmute":
		if err := a.userService.SetNotificationsEnabled(ctx, update.UserID, true); err != nil {
			return err
		}
		return a.bot.SendText(ctx, update.ChatID, "🔔 Уведомления включены.")
	default:
		return nil
	}
}

func (a *App) handleStart(ctx context.Context, update tginfra.CommandUpdate) error {
	user, created, err := a.userService.Register(ctx, update.UserID, update.FirstName, update.Username)
	if err != nil {
		return err
	}

	if created {
		if _, err := a.subsService.GrantTrial(ctx, user); err != nil {
			if !errors.Is(err, subssvc.ErrTrialAlreadyUsed) {
				return err
			}
		}
	}

	return a.bot.Send(ctx, update.ChatID, a.contentService.Welcome(user, created))
}

func (a *App) handleStats(ctx context.Context, chatID, userID int64) error {
	allowed, err := a.subsService.HasAccess(ctx, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return a.bot.Send(ctx, chatID, a.contentService.NoAccess())
	}

	stats, err := a.entryService.MonthlyStats(ctx, userID)
	if err != nil {
		return err
	}
	return a.bot.Send(ctx, chatID, a.contentService.Stats(stats.AvgMood, stats.AvgPhysical, stats.Entries))
}

func (a *App) handleSettings(ctx context.Context, chatID, userID int64) error {
	user, err := a.userService.Get(ctx, userID)
	if err != nil {
		return err
	}
	return a.bot.Send(ctx, chatID, a.contentService.Settings(user))
}

func (a *App) handleToggle(ctx context.Context, update tginfra.CallbackUpdate, daytime bool) error {
	user, err := a.userService.Get(ctx, update.UserID)
	if err != nil {
		return err
	}

	if daytime {
		err = a.userService.SetDaytimeNotifications(ctx, update.UserID, !user.Settings.DaytimeNotifications)
	} else {
		err = a.userService.SetNotificationsEnabled(ctx, update.UserID, !user.Settings.NotificationsEnabled)
	}
	if err != nil {
		return err
	}

	if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.handleSettings(ctx, update.ChatID, update.UserID)
}

func (a *App) handleCallback(ctx context.Context, update tginfra.CallbackUpdate) error {
	if a.bot == nil {
		return nil
	}

	data := strings.TrimSpace(update.Data)
	switch {
	case data == contentsvc.CallbackShowTariffs:
		if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
			return err
		}
		return a.bot.Send(ctx, update.ChatID, a.contentService.Tariffs())

	case data == contentsvc.CallbackSkipSurvey:
		if err := a.conversationRepo.Clear(ctx, update.UserID); err != nil {
			a.logger.Warn("clear conversation", zap.Int64("user_id", update.UserID), zap.Error(err))
		}
		if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
			return err
		}
		return a.bot.Send(ctx, update.ChatID, a.contentService.SurveySkipped())

	case data == contentsvc.CallbackStartSleep:
		if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
			return err
		}
		return a.bot.Send(ctx, update.ChatID, a.contentService.SleepScalePrompt())

	case strings.HasPrefix(data, contentsvc.CallbackSleepPrefix):
		return a.handleSleepScore(ctx, update, strings.TrimPrefix(data, contentsvc.CallbackSleepPrefix))

	case strings.HasPrefix(data, contentsvc.CallbackMoodPrefix):
		return a.handleMoodScore(ctx, update, strings.TrimPrefix(data, contentsvc.CallbackMoodPrefix))

	case data == contentsvc.CallbackSkipNote:
		return a.handleNoteSkip(ctx, update)

	case data == contentsvc.CallbackToggleNotify:
		return a.handleToggle(ctx, update, false)

	case data == contentsvc.CallbackToggleDay:
		return a.handleToggle(ctx, update, true)

	default:
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Неизвестное действие")
	}
}

func (a *App) handleSleepScore(ctx context.Context, update tginfra.CallbackUpdate, raw string) error {
	score, ok := parseScore(raw)
	if !ok {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Некорректная оценка")
	}

	state, err := a.conversationState(ctx, update.UserID)
	if err != nil {
		return err
	}
	if state == nil || state.Step != enums.StepAwaitSleepQuality {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Опрос уже завершён")
	}

	state.SleepQuality = &score
	state.Step = enums.StepAwaitMoodScore
	if err := a.conversationRepo.Set(ctx, update.UserID, *state); err != nil {
		return err
	}

	if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.bot.Send(ctx, update.ChatID, a.contentService.MoodScalePrompt())
}

func (a *App) handleMoodScore(ctx context.Context, update tginfra.CallbackUpdate, raw string) error {
	score, ok := parseScore(raw)
	if !ok {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Некорректная оценка")
	}

	state, err := a.conversationState(ctx, update.UserID)
	if err != nil {
		return err
	}
	if state == nil || state.Step != enums.StepAwaitMoodScore {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Опрос уже завершён")
	}

	state.MoodScore = &score
	state.Step = enums.StepAwaitNote
	if err := a.conversationRepo.Set(ctx, update.UserID, *state); err != nil {
		return err
	}

	if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.bot.Send(ctx, update.ChatID, a.contentService.NotePrompt())
}

func (a *App) handleNoteSkip(ctx context.Context, update tginfra.CallbackUpdate) error {
	state, err := a.conversationState(ctx, update.UserID)
	if err != nil {
		return err
	}
	if state == nil || state.Step != enums.StepAwaitNote {
		return a.bot.AnswerCallback(ctx, update.CallbackID, "Опрос уже завершён")
	}

	if err := a.bot.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.finishSurvey(ctx, update.ChatID, update.UserID, *state, "")
}

// handleText treats free text as the survey note when a flow is waiting for
// one; everything else is ignored.
func (a *App) handleText(ctx context.Context, update tginfra.TextUpdate) error {
	if a.bot == nil {
		return nil
	}

	state, err := a.conversationState(ctx, update.UserID)
	if err != nil {
		return err
	}
	if state == nil || state.Step != enums.StepAwaitNote {
		return nil
	}

	return a.finishSurvey(ctx, update.ChatID, update.UserID, *state, update.Text)
}

func (a *App) finishSurvey(ctx context.Context, chatID, userID int64, state model.ConversationState, note string) error {
	kind := enums.EventForFlow(state.Flow)
	if _, err := a.entryService.RecordSurvey(ctx, userID, kind, state, note); err != nil {
		return err
	}

	if err := a.conversationRepo.Clear(ctx, userID); err != nil {
		a.logger.Warn("clear conversation", zap.Int64("user_id", userID), zap.Error(err))
	}

	return a.bot.Send(ctx, chatID, a.contentService.Farewell())
}

func (a *App) conversationState(ctx context.Context, userID int64) (*model.ConversationState, error) {
	state, err := a.conversationRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, redrepo.ErrConversationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func parseScore(raw string) (int, bool) {
	score, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || score < 1 || score > 10 {
		return 0, false
	}
	return score, true
}
