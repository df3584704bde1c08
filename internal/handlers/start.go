package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/QuestboT/internal/service"
	"github.com/Kerhoff/QuestboT/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// SessionTokenPrefix marks a /start deep-link payload as a quest session
// token (the QR code encodes "start quest_<session>").
const SessionTokenPrefix = "quest_"

// StartHandler handles the /start command, including the parent linking flow
// triggered by the QR-code deep link.
type StartHandler struct {
	svc    *service.Service
	review *ReviewHandler
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, review *ReviewHandler, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		svc:    svc,
		review: review,
		logger: logger,
	}
}

// Handle processes the /start command. With a quest_ token it links the chat
// as the session's parent; without one it sends a greeting.
func (h *StartHandler) Handle(api telegram.API, message *tgbotapi.Message, args []string) error {
	// Starting over abandons any half-finished comment flow in this chat.
	h.review.Reset(message.Chat.ID)

	if len(args) > 0 && strings.HasPrefix(args[0], SessionTokenPrefix) {
		return h.link(api, message, args[0])
	}

	greeting := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Я бот для Хеллоуин квеста. Чтобы подключиться как родитель, "+
			"отсканируйте QR-код из приложения квеста.\n\n"+
			"🎃 Удачного квеста!",
		message.From.FirstName,
	)
	if _, err := api.Send(tgbotapi.NewMessage(message.Chat.ID, greeting)); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}
	return nil
}

func (h *StartHandler) link(api telegram.API, message *tgbotapi.Message, sessionID string) error {
	_, err := h.svc.LinkParent(
		context.Background(),
		sessionID,
		message.Chat.ID,
		message.From.UserName,
		message.From.FirstName,
	)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"chat_id": message.Chat.ID,
			"session": sessionID,
			"error":   err,
		}).Error("Failed to create family link")

		msg := tgbotapi.NewMessage(message.Chat.ID,
			"❌ Произошла ошибка при подключении.\n"+
				"Попробуйте отсканировать QR-код еще раз.")
		api.Send(msg)
		return nil
	}

	msg := tgbotapi.NewMessage(message.Chat.ID,
		"🎃 <b>Добро пожаловать в Хеллоуин квест!</b>\n\n"+
			"Вы успешно подключены как родитель.\n"+
			"Теперь вы будете получать фотографии заданий от ребенка для проверки.\n\n"+
			"📱 <i>Ребенок может продолжать квест!</i>")
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("failed to send link confirmation: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"session": sessionID,
	}).Info("Parent linked")
	return nil
}
