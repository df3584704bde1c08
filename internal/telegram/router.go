package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// API is the subset of *tgbotapi.BotAPI the handlers need. Keeping it narrow
// lets tests substitute a mock.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(api API, message *tgbotapi.Message, args []string) error
}

// CallbackHandler defines the interface for callback-query handlers. The
// payload is the callback data with the registered prefix stripped.
type CallbackHandler interface {
	Handle(api API, query *tgbotapi.CallbackQuery, payload string) error
}

// CallbackFunc adapts a function to the CallbackHandler interface.
type CallbackFunc func(api API, query *tgbotapi.CallbackQuery, payload string) error

func (f CallbackFunc) Handle(api API, query *tgbotapi.CallbackQuery, payload string) error {
	return f(api, query, payload)
}

// TextHandler receives non-command text messages. It reports whether the
// message was consumed (e.g. as a buffered review comment).
type TextHandler interface {
	HandleText(api API, message *tgbotapi.Message) (bool, error)
}

// Router handles message routing, command parsing and callback dispatch
type Router struct {
	logger      *logrus.Logger
	handlers    map[string]CommandHandler
	callbacks   map[string]CallbackHandler
	textHandler TextHandler
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a callback handler for a data prefix
func (r *Router) RegisterCallback(prefix string, handler CallbackHandler) {
	r.callbacks[prefix] = handler
	r.logger.Debugf("Registered callback prefix: %s", prefix)
}

// SetTextHandler sets the handler for non-command text messages
func (r *Router) SetTextHandler(handler TextHandler) {
	r.textHandler = handler
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(api API, message *tgbotapi.Message) {
	r.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"username":   message.From.UserName,
		"message_id": message.MessageID,
	}).Info("Received message")

	if message.Text == "" {
		return
	}

	if !message.IsCommand() {
		if r.textHandler == nil {
			return
		}
		handled, err := r.textHandler.HandleText(api, message)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"chat_id": message.Chat.ID,
				"error":   err,
			}).Error("Text handler failed")
		}
		if !handled {
			r.logger.Debugf("Ignoring text message in chat %d", message.Chat.ID)
		}
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	if handler, exists := r.handlers[command]; exists {
		if err := handler.Handle(api, message, args); err != nil {
			r.logger.WithFields(logrus.Fields{
				"command": command,
				"chat_id": message.Chat.ID,
				"user_id": message.From.ID,
				"error":   err,
			}).Error("Command handler failed")

			errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ Произошла ошибка. Попробуйте еще раз.")
			api.Send(errorMsg)
		}
	} else {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Неизвестная команда. Используйте /help для справки.")
		api.Send(unknownMsg)
	}
}

// HandleCallbackQuery handles callback queries from inline keyboards. The
// handler with the longest matching prefix wins, so approve_comment_* is not
// swallowed by the approve_* handler.
func (r *Router) HandleCallbackQuery(api API, query *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": query.ID,
		"user_id":     query.From.ID,
		"data":        query.Data,
	}).Info("Received callback query")

	var (
		match   CallbackHandler
		longest string
	)
	for prefix, handler := range r.callbacks {
		if strings.HasPrefix(query.Data, prefix) && len(prefix) > len(longest) {
			match = handler
			longest = prefix
		}
	}

	if match == nil {
		r.logger.Warnf("Unhandled callback data: %s", query.Data)
		api.Request(tgbotapi.NewCallback(query.ID, ""))
		return
	}

	payload := strings.TrimPrefix(query.Data, longest)
	if err := match.Handle(api, query, payload); err != nil {
		r.logger.WithFields(logrus.Fields{
			"prefix":  longest,
			"user_id": query.From.ID,
			"error":   err,
		}).Error("Callback handler failed")
		api.Request(tgbotapi.NewCallback(query.ID, "❌ Ошибка при обработке"))
	}
}
