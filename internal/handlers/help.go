package handlers

import (
	"fmt"

	"github.com/Kerhoff/QuestboT/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(api telegram.API, message *tgbotapi.Message, args []string) error {
	helpText := `🎃 <b>Хеллоуин квест бот</b>

<b>Команды:</b>
• /start - Начать работу с ботом
• /help - Показать эту справку

<b>Как это работает:</b>
1. Ребенок сканирует QR-код в приложении квеста
2. Вы подтверждаете подключение как родитель
3. Получаете фотографии заданий для проверки
4. Одобряете или просите переделать

🎃 Удачного квеста!`

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
