package telegram

import (
	"context"
	"fmt"

	"github.com/Kerhoff/QuestboT/internal/metrics"
	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Bot wraps the Telegram bot API and drives the parent review conversation.
type Bot struct {
	api    *tgbotapi.BotAPI
	svc    *service.Service
	logger *logrus.Logger
	router *Router

	// onReview, when set, abandons any pending comment flow for a chat
	// before a new review prompt lands there.
	onReview func(chatID int64)
}

// NewBot creates a new Telegram bot instance
func NewBot(token string, svc *service.Service, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:    api,
		svc:    svc,
		logger: logger,
		router: NewRouter(logger),
	}, nil
}

// Start starts the bot with long polling. It blocks until the context is
// cancelled.
func (b *Bot) Start(ctx context.Context) error {
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started with long polling")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping bot...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

// handleUpdate processes incoming updates
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in update handler: %v", r)
		}
	}()

	if update.Message != nil {
		b.router.HandleMessage(b.api, update.Message)
	} else if update.CallbackQuery != nil {
		b.router.HandleCallbackQuery(b.api, update.CallbackQuery)
	}
}

// NotifyParent sends the submitted photo to the parent chat with the review
// keyboard attached and logs the sent message. Failures are returned to the
// caller; nothing is retried here.
func (b *Bot) NotifyParent(ctx context.Context, parentChatID int64, submissionID, taskName, photoPath string) error {
	if b.onReview != nil {
		b.onReview(parentChatID)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Отлично!", "approve_"+submissionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Переделать", "reject_"+submissionID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Оставить комментарий", "comment_"+submissionID),
		),
	)

	photo := tgbotapi.NewPhoto(parentChatID, tgbotapi.FilePath(photoPath))
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyMarkup = keyboard
	photo.Caption = fmt.Sprintf(
		"🎃 <b>Новое задание выполнено!</b>\n\n"+
			"📋 <b>Задание:</b> %s\n"+
			"📸 <b>Фотография от ребенка</b>\n\n"+
			"Оцените выполнение задания:",
		taskName,
	)

	sent, err := b.api.Send(photo)
	if err != nil {
		metrics.ParentNotifications.WithLabelValues("failed").Inc()
		b.logger.Errorf("Failed to send photo for review %s: %v", submissionID, err)
		return fmt.Errorf("failed to send review photo: %w", err)
	}

	if err := b.svc.LogBotMessage(ctx, parentChatID, sent.MessageID, submissionID, models.MessageTypePhotoReview); err != nil {
		// The prompt is already on the parent's screen; a lost log row is
		// not worth failing the upload over.
		b.logger.Errorf("Failed to log review message: %v", err)
	}

	metrics.ParentNotifications.WithLabelValues("ok").Inc()
	b.logger.Infof("Photo sent for review: %s -> %d", submissionID, parentChatID)
	return nil
}

// RegisterCommand registers a command handler on the router
func (b *Bot) RegisterCommand(command string, handler CommandHandler) {
	b.router.RegisterCommand(command, handler)
}

// RegisterCallback registers a callback handler for a data prefix
func (b *Bot) RegisterCallback(prefix string, handler CallbackHandler) {
	b.router.RegisterCallback(prefix, handler)
}

// SetTextHandler sets the handler for free-text messages
func (b *Bot) SetTextHandler(handler TextHandler) {
	b.router.SetTextHandler(handler)
}

// SetReviewReset installs the hook that clears a chat's pending comment flow
// when a new review prompt is about to be sent to it.
func (b *Bot) SetReviewReset(fn func(chatID int64)) {
	b.onReview = fn
}
