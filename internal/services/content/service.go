package content

import (
	"fmt"
	"math/rand"

	"github.com/lubowsky/mood-tracker/internal/domain/enums"
	"github.com/lubowsky/mood-tracker/internal/domain/model"
	"github.com/lubowsky/mood-tracker/internal/infra/telegram"
)

// Callback payloads shared between rendered keyboards and the update handlers.
const (
	CallbackShowTariffs  = "show_tariffs"
	CallbackSkipSurvey   = "survey:skip"
	CallbackStartSleep   = "survey:sleep"
	CallbackSleepPrefix  = "sleep:"
	CallbackMoodPrefix   = "mood:"
	CallbackSkipNote     = "note:skip"
	CallbackToggleNotify = "settings:notify"
	CallbackToggleDay    = "settings:daytime"
)

var daytimeOpeners = []string{
	"💫 Привет! Как твоё состояние в этот момент?",
	"🌿 Хорошего дня! Что чувствуешь прямо сейчас?",
	"🌸 Добрый день! Как твоё настроение?",
	"☀️ Привет! Как твоё самочувствие в эту минуту?",
	"🌼 Здравствуй! Что происходит с тобой сейчас?",
}

var farewells = []string{
	"✨ Спасибо, что поделился. Желаю тебе лёгкого и спокойного дня.",
	"🌿 Твоя искренность помогает тебе лучше понимать себя. Береги себя.",
	"💛 Спасибо! Не забывай: ты всегда можешь добавить запись в любой момент.",
	"🌼 Пусть сегодня будет много тепла и понимания.",
}

// Service renders user-facing message content. It holds no state besides the
// random source, so a zero value with New is safe to share.
type Service struct {
	pick func(n int) int
}

func NewService() *Service {
	return &Service{pick: rand.Intn}
}

// ForEvent resolves a scheduled notification into an outbound message.
// Lifecycle kinds ignore the flow; survey kinds open the matching flow.
func (s *Service) ForEvent(kind enums.EventKind, user model.User, trial bool) telegram.Outbound {
	switch kind {
	case enums.EventWarn3Days:
		return s.Warn3Days()
	case enums.EventWarn1Day:
		return s.Warn1Day()
	case enums.EventExpired:
		return s.Expired(trial)
	default:
		return s.SurveyOpening(enums.FlowForEvent(kind), user)
	}
}

func (s *Service) Warn3Days() telegram.Outbound {
	return telegram.Outbound{Text: "⏰ Напоминание:\n\nДо окончания подписки осталось 3 дня."}
}

func (s *Service) Warn1Day() telegram.Outbound {
	return telegram.Outbound{Text: "⚠️ Внимание:\n\nПодписка закончится завтра."}
}

func (s *Service) Expired(trial bool) telegram.Outbound {
	text := "⛔️ Ваша подписка закончилась.\n\nПродлите её, чтобы продолжить пользоваться ботом."
	if trial {
		text = "🛑 Ваш пробный период завершён.\n\nВыберите тариф, чтобы продолжить."
	}
	return telegram.Outbound{
		Text: text,
		Buttons: [][]telegram.Button{
			{{Label: "📋 Посмотреть тарифы", Data: CallbackShowTariffs}},
		},
	}
}

func (s *Service) SurveyOpening(flow enums.SurveyFlow, user model.User) telegram.Outbound {
	name := user.Settings.HomeName
	if name == "" {
		name = user.FirstName
	}
	if name == "" {
		name = "дорогой друг"
	}

	switch flow {
	case enums.FlowMorning:
		return telegram.Outbound{
			Text: fmt.Sprintf("🌅 Доброе утро, %s!\n\nКак спалось? Расскажи о качестве своего сна.", name),
			Buttons: [][]telegram.Button{
				{{Label: "💤 Оценить сон", Data: CallbackStartSleep}},
				{{Label: "⏰ Пропустить", Data: CallbackSkipSurvey}},
			},
		}
	case enums.FlowEvening:
		return telegram.Outbound{
			Text: fmt.Sprintf("🌙 Добрый вечер, %s!\n\nКак прошёл твой день? Подведём итоги?", name),
			Buttons: append(scoreKeyboard(CallbackMoodPrefix), []telegram.Button{
				{Label: "🌙 Сегодня не хочу", Data: CallbackSkipSurvey},
			}),
		}
	default:
		opener := daytimeOpeners[s.pick(len(daytimeOpeners))]
		return telegram.Outbound{
			Text: opener + "\n\nОцени своё настроение или просто скажи, что всё хорошо 💛",
			Buttons: append(scoreKeyboard(CallbackMoodPrefix), []telegram.Button{
				{Label: "🔕 Не спрашивать сегодня", Data: CallbackSkipSurvey},
			}),
		}
	}
}

// SleepScalePrompt asks for the 1..10 sleep quality score.
func (s *Service) SleepScalePrompt() telegram.Outbound {
	return telegram.Outbound{
		Text:    "💤 Оцени качество сна от 1 до 10:\n\n1 - плохо, не выспался\n5 - нормально\n10 - отлично, бодрое утро",
		Buttons: scoreKeyboard(CallbackSleepPrefix),
	}
}

func (s *Service) MoodScalePrompt() telegram.Outbound {
	return telegram.Outbound{
		Text:    "⭐️ Оцени своё настроение от 1 до 10:",
		Buttons: scoreKeyboard(CallbackMoodPrefix),
	}
}

func (s *Service) NotePrompt() telegram.Outbound {
	return telegram.Outbound{
		Text: "💭 Расскажи подробнее о своём состоянии.\n\nПиши в свободной форме, я выслушаю 🌸",
		Buttons: [][]telegram.Button{
			{{Label: "Пропустить", Data: CallbackSkipNote}},
		},
	}
}

func (s *Service) Farewell() telegram.Outbound {
	return telegram.Outbound{Text: farewells[s.pick(len(farewells))]}
}

func (s *Service) SurveySkipped() telegram.Outbound {
	return telegram.Outbound{Text: "Хорошо 🌞 Если захочешь, всегда можно добавить запись через меню."}
}

func (s *Service) Welcome(user model.User, created bool) telegram.Outbound {
	name := user.FirstName
	if name == "" {
		name = "друг"
	}
	if created {
		return telegram.Outbound{
			Text: fmt.Sprintf("👋 Привет, %s!\n\nЯ помогу тебе вести дневник настроения. Пробный доступ на 24 часа уже активирован.", name),
		}
	}
	return telegram.Outbound{
		Text: fmt.Sprintf("С возвращением, %s! 🌿", name),
	}
}

func (s *Service) Tariffs() telegram.Outbound {
	return telegram.Outbound{
		Text: "📋 Доступные тарифы:\n\n• 7 дней\n• 30 дней\n\nОплата выставляется в личном кабинете.",
	}
}

func (s *Service) Stats(avgMood, avgPhysical float64, entries int) telegram.Outbound {
	if entries == 0 {
		return telegram.Outbound{Text: "📊 Пока нет записей за последние 30 дней."}
	}
	return telegram.Outbound{
		Text: fmt.Sprintf(
			"📊 Статистика за 30 дней:\n\nЗаписей: %d\nСреднее настроение: %.1f/10\nФизическое состояние: %.1f/10",
			entries, avgMood, avgPhysical,
		),
	}
}

func (s *Service) Settings(user model.User) telegram.Outbound {
	return telegram.Outbound{
		Text: fmt.Sprintf(
			"⚙️ Настройки:\n\nЧасовой пояс: %s\nУтренний опрос: %s\nВечерний опрос: %s",
			user.Settings.Timezone, user.Settings.MorningTime, user.Settings.EveningTime,
		),
		Buttons: [][]telegram.Button{
			{{Label: toggleLabel("Уведомления", user.Settings.NotificationsEnabled), Data: CallbackToggleNotify}},
			{{Label: toggleLabel("Дневные опросы", user.Settings.DaytimeNotifications), Data: CallbackToggleDay}},
		},
	}
}

func toggleLabel(name string, enabled bool) string {
	if enabled {
		return name + ": вкл 🔔"
	}
	return name + ": выкл 🔕"
}

func (s *Service) NoAccess() telegram.Outbound {
	return telegram.Outbound{
		Text: "⛔️ Нет активной подписки.\n\nВыберите тариф, чтобы продолжить.",
		Buttons: [][]telegram.Button{
			{{Label: "📋 Посмотреть тарифы", Data: CallbackShowTariffs}},
		},
	}
}

func scoreKeyboard(prefix string) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, 2)
	row := make([]telegram.Button, 0, 5)
	for i := 1; i <= 10; i++ {
		row = append(row, telegram.Button{
			Label: fmt.Sprintf("%d", i),
			Data:  fmt.Sprintf("%s%d", prefix, i),
		})
		if i == 5 || i == 10 {
			rows = append(rows, row)
			row = make([]telegram.Button, 0, 5)
		}
	}
	return rows
}
