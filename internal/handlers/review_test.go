package handlers

import (
	"context"
	"io"
	"testing"

	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository/memory"
	"github.com/Kerhoff/QuestboT/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockAPI implements telegram.API
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func newLooseAPI() *mockAPI {
	api := &mockAPI{}
	api.On("Send", mock.Anything).Return(tgbotapi.Message{MessageID: 100}, nil)
	api.On("Request", mock.Anything).Return(&tgbotapi.APIResponse{Ok: true}, nil)
	return api
}

const parentChatID = int64(42)

func newTestReview(t *testing.T) (*ReviewHandler, *service.Service) {
	t.Helper()

	links := memory.NewFamilyLinkRepository()
	subs := memory.NewSubmissionRepository(links)
	msgs := memory.NewBotMessageRepository()

	l := logrus.New()
	l.SetOutput(io.Discard)
	svc := service.New(l, links, subs, msgs)

	_, err := svc.LinkParent(context.Background(), "quest_abc", parentChatID, "mom", "Мария")
	require.NoError(t, err)

	return NewReviewHandler(svc, l), svc
}

func submitTestPhoto(t *testing.T, svc *service.Service, submissionID string) {
	t.Helper()
	_, err := svc.SubmitPhoto(context.Background(), submissionID, "quest_abc", 1, "Carve a pumpkin", "http://x/p.jpg", "/tmp/p.jpg")
	require.NoError(t, err)
}

func newCallback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: parentChatID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: parentChatID},
		},
	}
}

func newText(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 11,
		Chat:      &tgbotapi.Chat{ID: parentChatID},
		From:      &tgbotapi.User{ID: parentChatID, FirstName: "Мария"},
		Text:      text,
	}
}

func TestApproveRecordsVerdict(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")
	api := newLooseAPI()

	err := review.Approve(api, newCallback("approve_sub-1"), "sub-1")
	require.NoError(t, err)

	sub, err := svc.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
	assert.Nil(t, sub.ParentComment)

	// Keyboard removal plus the confirmation reply.
	api.AssertNumberOfCalls(t, "Send", 2)
}

func TestRejectRecordsDefaultComment(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")

	err := review.Reject(newLooseAPI(), newCallback("reject_sub-1"), "sub-1")
	require.NoError(t, err)

	sub, _ := svc.GetSubmission(context.Background(), "sub-1")
	assert.Equal(t, models.SubmissionStatusRejected, sub.Status)
	require.NotNil(t, sub.ParentComment)
	assert.Equal(t, DefaultRejectComment, *sub.ParentComment)
}

func TestSecondPressDoesNotRewriteVerdict(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")

	require.NoError(t, review.Approve(newLooseAPI(), newCallback("approve_sub-1"), "sub-1"))

	api := &mockAPI{}
	api.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		cb, ok := c.(tgbotapi.CallbackConfig)
		return ok && cb.Text == "Это задание уже проверено"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil)

	require.NoError(t, review.Reject(api, newCallback("reject_sub-1"), "sub-1"))

	sub, _ := svc.GetSubmission(context.Background(), "sub-1")
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
	api.AssertExpectations(t)
}

func TestCommentFlowRejectWithComment(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")
	api := newLooseAPI()

	require.NoError(t, review.RequestComment(api, newCallback("comment_sub-1"), "sub-1"))

	handled, err := review.HandleText(api, newText("try a sharper cut"))
	require.NoError(t, err)
	assert.True(t, handled)

	require.NoError(t, review.RejectWithComment(api, newCallback("reject_comment_sub-1"), "sub-1"))

	sub, _ := svc.GetSubmission(context.Background(), "sub-1")
	assert.Equal(t, models.SubmissionStatusRejected, sub.Status)
	require.NotNil(t, sub.ParentComment)
	assert.Equal(t, "try a sharper cut", *sub.ParentComment)
}

func TestCommentFlowApproveWithComment(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")
	api := newLooseAPI()

	require.NoError(t, review.RequestComment(api, newCallback("comment_sub-1"), "sub-1"))

	handled, err := review.HandleText(api, newText("Молодец!"))
	require.NoError(t, err)
	assert.True(t, handled)

	require.NoError(t, review.ApproveWithComment(api, newCallback("approve_comment_sub-1"), "sub-1"))

	sub, _ := svc.GetSubmission(context.Background(), "sub-1")
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
	require.NotNil(t, sub.ParentComment)
	assert.Equal(t, "Молодец!", *sub.ParentComment)
}

func TestTextOutsideCommentFlowIgnored(t *testing.T) {
	review, _ := newTestReview(t)
	api := &mockAPI{}

	handled, err := review.HandleText(api, newText("hello"))
	require.NoError(t, err)
	assert.False(t, handled)
	api.AssertNotCalled(t, "Send", mock.Anything)
}

func TestResetAbandonsCommentFlow(t *testing.T) {
	review, svc := newTestReview(t)
	submitTestPhoto(t, svc, "sub-1")
	api := newLooseAPI()

	require.NoError(t, review.RequestComment(api, newCallback("comment_sub-1"), "sub-1"))
	review.Reset(parentChatID)

	handled, err := review.HandleText(api, newText("too late"))
	require.NoError(t, err)
	assert.False(t, handled)
}
