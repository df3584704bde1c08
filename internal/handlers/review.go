package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kerhoff/QuestboT/internal/metrics"
	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/service"
	"github.com/Kerhoff/QuestboT/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// DefaultRejectComment accompanies a plain rejection.
const DefaultRejectComment = "Попробуйте еще раз"

// commentStage tracks where a chat is in the comment flow.
type commentStage int

const (
	stageAwaitingComment commentStage = iota + 1
	stageCommentBuffered
)

// reviewState is the transient per-chat conversation state. It lives only in
// process memory; losing it on restart just restarts the comment flow.
type reviewState struct {
	stage        commentStage
	submissionID string
	comment      string
}

// ReviewHandler drives the parent review flow: the verdict buttons under a
// review prompt and the two-step leave-a-comment conversation.
type ReviewHandler struct {
	svc    *service.Service
	logger *logrus.Logger

	mu     sync.Mutex
	states map[int64]*reviewState
}

// NewReviewHandler creates the review callback handler
func NewReviewHandler(svc *service.Service, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{
		svc:    svc,
		logger: logger,
		states: make(map[int64]*reviewState),
	}
}

// Reset abandons any pending comment flow in the chat.
func (h *ReviewHandler) Reset(chatID int64) {
	h.mu.Lock()
	delete(h.states, chatID)
	h.mu.Unlock()
}

// Approve handles the plain approve button.
func (h *ReviewHandler) Approve(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string) error {
	return h.finalize(api, query, submissionID, models.SubmissionStatusApproved, nil,
		"✅ Фотография одобрена!",
		"✅ <b>Задание одобрено!</b>\n\nРебенок может продолжать квест. Отличная работа! 🎉")
}

// Reject handles the plain reject button; a default comment is recorded.
func (h *ReviewHandler) Reject(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string) error {
	comment := DefaultRejectComment
	return h.finalize(api, query, submissionID, models.SubmissionStatusRejected, &comment,
		"❌ Задание отклонено",
		"❌ <b>Задание нужно переделать</b>\n\nРебенок получит уведомление и сможет попробовать еще раз.")
}

// RequestComment handles the leave-a-comment button: the chat enters the
// awaiting-comment state and the next text message is taken as the comment.
func (h *ReviewHandler) RequestComment(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string) error {
	if query.Message == nil {
		return fmt.Errorf("callback query without message")
	}
	chatID := query.Message.Chat.ID

	h.mu.Lock()
	h.states[chatID] = &reviewState{stage: stageAwaitingComment, submissionID: submissionID}
	h.mu.Unlock()

	prompt := tgbotapi.NewMessage(chatID,
		"💬 <b>Напишите комментарий для ребенка:</b>\n\n"+
			"Например: \"Молодец! Но попробуй сделать тень более четкой\" или \"Отлично выполнено!\"")
	prompt.ParseMode = tgbotapi.ModeHTML
	prompt.ReplyToMessageID = query.Message.MessageID

	if _, err := api.Send(prompt); err != nil {
		return fmt.Errorf("failed to send comment prompt: %w", err)
	}

	api.Request(tgbotapi.NewCallback(query.ID, ""))
	return nil
}

// HandleText consumes the next free-text message from a chat that is awaiting
// a comment. Other text messages are left alone.
func (h *ReviewHandler) HandleText(api telegram.API, message *tgbotapi.Message) (bool, error) {
	chatID := message.Chat.ID

	h.mu.Lock()
	state, ok := h.states[chatID]
	if !ok || state.stage != stageAwaitingComment {
		h.mu.Unlock()
		return false, nil
	}
	state.comment = message.Text
	state.stage = stageCommentBuffered
	submissionID := state.submissionID
	h.mu.Unlock()

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить с комментарием", "approve_comment_"+submissionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить с комментарием", "reject_comment_"+submissionID),
		),
	)

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"💬 <b>Ваш комментарий:</b>\n\n<i>\"%s\"</i>\n\nТеперь выберите решение:",
		tgbotapi.EscapeText(tgbotapi.ModeHTML, message.Text),
	))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard

	if _, err := api.Send(msg); err != nil {
		return true, fmt.Errorf("failed to echo comment: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"submission": submissionID,
	}).Info("Buffered review comment")
	return true, nil
}

// ApproveWithComment finalizes the comment flow with an approval.
func (h *ReviewHandler) ApproveWithComment(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string) error {
	comment := h.takeComment(query, submissionID)
	return h.finalize(api, query, submissionID, models.SubmissionStatusApproved, &comment,
		"✅ Задание одобрено с комментарием!",
		fmt.Sprintf("✅ <b>Задание одобрено!</b>\n\n💬 <b>Ваш комментарий:</b> \"%s\"\n\nРебенок может продолжать квест! 🎉",
			tgbotapi.EscapeText(tgbotapi.ModeHTML, comment)))
}

// RejectWithComment finalizes the comment flow with a rejection.
func (h *ReviewHandler) RejectWithComment(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string) error {
	comment := h.takeComment(query, submissionID)
	return h.finalize(api, query, submissionID, models.SubmissionStatusRejected, &comment,
		"❌ Задание отклонено с комментарием",
		fmt.Sprintf("❌ <b>Задание нужно переделать</b>\n\n💬 <b>Ваш комментарий:</b> \"%s\"\n\nРебенок получит ваши рекомендации и сможет попробовать еще раз.",
			tgbotapi.EscapeText(tgbotapi.ModeHTML, comment)))
}

// takeComment removes the chat's buffered comment and returns it. An empty
// string comes back when the state was lost (e.g. process restart).
func (h *ReviewHandler) takeComment(query *tgbotapi.CallbackQuery, submissionID string) string {
	if query.Message == nil {
		return ""
	}
	chatID := query.Message.Chat.ID

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.states[chatID]
	if !ok || state.submissionID != submissionID {
		return ""
	}
	delete(h.states, chatID)
	return state.comment
}

// finalize records the verdict and updates the parent's chat. A repeated
// press on an already actioned button gets an informational answer and
// changes nothing.
func (h *ReviewHandler) finalize(api telegram.API, query *tgbotapi.CallbackQuery, submissionID string, status models.SubmissionStatus, comment *string, answer, replyText string) error {
	if query.Message == nil {
		return fmt.Errorf("callback query without message")
	}

	reviewed, err := h.svc.ReviewSubmission(context.Background(), submissionID, status, comment)
	if err != nil {
		return err
	}
	if !reviewed {
		api.Request(tgbotapi.NewCallback(query.ID, "Это задание уже проверено"))
		return nil
	}

	metrics.Reviews.WithLabelValues(string(status)).Inc()

	// Strip the buttons from the review prompt so the verdict is visibly
	// final; the status guard above is the actual protection.
	h.removeKeyboard(api, query)

	api.Request(tgbotapi.NewCallback(query.ID, answer))

	reply := tgbotapi.NewMessage(query.Message.Chat.ID, replyText)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = query.Message.MessageID
	if _, err := api.Send(reply); err != nil {
		return fmt.Errorf("failed to send review confirmation: %w", err)
	}

	return nil
}

func (h *ReviewHandler) removeKeyboard(api telegram.API, query *tgbotapi.CallbackQuery) {
	edit := tgbotapi.NewEditMessageReplyMarkup(
		query.Message.Chat.ID,
		query.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	if _, err := api.Send(edit); err != nil {
		h.logger.Warnf("Failed to remove review keyboard: %v", err)
	}
}
