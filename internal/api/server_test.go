package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"

	"github.com/Kerhoff/QuestboT/internal/config"
	"github.com/Kerhoff/QuestboT/internal/models"
	"github.com/Kerhoff/QuestboT/internal/repository/memory"
	"github.com/Kerhoff/QuestboT/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifyCall struct {
	ParentChatID int64
	SubmissionID string
	TaskName     string
	PhotoPath    string
}

// fakeNotifier implements ParentNotifier
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (f *fakeNotifier) NotifyParent(_ context.Context, parentChatID int64, submissionID, taskName, photoPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{parentChatID, submissionID, taskName, photoPath})
	return f.err
}

type fixture struct {
	handler  http.Handler
	svc      *service.Service
	notifier *fakeNotifier
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	links := memory.NewFamilyLinkRepository()
	subs := memory.NewSubmissionRepository(links)
	msgs := memory.NewBotMessageRepository()

	l := logrus.New()
	l.SetOutput(io.Discard)
	svc := service.New(l, links, subs, msgs)

	cfg := &config.Config{
		APIHost:      "127.0.0.1",
		APIPort:      "0",
		WebAppURL:    "https://quest.example.com",
		PhotosDir:    t.TempDir(),
		MaxPhotoSize: config.MaxPhotoSize,
		LogLevel:     "error",
	}

	notifier := &fakeNotifier{}
	srv := NewServer(svc, notifier, cfg, l)

	return &fixture{handler: srv.Handler(), svc: svc, notifier: notifier, cfg: cfg}
}

func (f *fixture) linkParent(t *testing.T, sessionID string, chatID int64) {
	t.Helper()
	_, err := f.svc.LinkParent(context.Background(), sessionID, chatID, "mom", "Мария")
	require.NoError(t, err)
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) photosOnDisk(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.cfg.PhotosDir)
	require.NoError(t, err)
	return len(entries)
}

// uploadRequest builds a multipart upload request.
func uploadRequest(t *testing.T, sessionID, taskID, taskName, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("session_id", sessionID))
	require.NoError(t, w.WriteField("task_id", taskID))
	require.NoError(t, w.WriteField("task_name", taskName))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-photo", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type statusBody struct {
	Status     string  `json:"status"`
	Comment    *string `json:"comment"`
	ReviewedAt *string `json:"reviewed_at"`
}

func pollStatus(t *testing.T, f *fixture, submissionID string) (int, statusBody) {
	t.Helper()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/photo-status/"+submissionID, nil))
	var body statusBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Halloween Quest API is running", body["message"])
	assert.Equal(t, Version, body["version"])
}

func TestCheckParentLink(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/check-parent-link/quest_abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["linked"])
	assert.Equal(t, "Мария", body["parent_name"])

	// Unlinked session
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/check-parent-link/quest_other", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["linked"])
}

func TestCheckParentLinkIdempotent(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	first := f.do(httptest.NewRequest(http.MethodGet, "/api/check-parent-link/quest_abc", nil))
	second := f.do(httptest.NewRequest(http.MethodGet, "/api/check-parent-link/quest_abc", nil))

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestUploadPhotoHappyPath(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	rec := f.do(uploadRequest(t, "quest_abc", "7", "Carve a pumpkin", "pumpkin.jpg", "image/jpeg", []byte("jpegdata")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success      bool   `json:"success"`
		SubmissionID string `json:"submission_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotEmpty(t, body.SubmissionID)

	// File is on disk and the parent was notified exactly once.
	assert.Equal(t, 1, f.photosOnDisk(t))
	require.Len(t, f.notifier.calls, 1)
	call := f.notifier.calls[0]
	assert.Equal(t, int64(42), call.ParentChatID)
	assert.Equal(t, body.SubmissionID, call.SubmissionID)
	assert.Equal(t, "Carve a pumpkin", call.TaskName)

	// Pending verdict immediately retrievable.
	code, status := pollStatus(t, f, body.SubmissionID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", status.Status)
	assert.Nil(t, status.Comment)
	assert.Nil(t, status.ReviewedAt)
}

func TestUploadPhotoNotLinked(t *testing.T) {
	f := newFixture(t)

	rec := f.do(uploadRequest(t, "quest_nobody", "1", "Carve a pumpkin", "p.jpg", "image/jpeg", []byte("x")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, f.photosOnDisk(t))
	assert.Empty(t, f.notifier.calls)
}

func TestUploadPhotoNonImage(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	rec := f.do(uploadRequest(t, "quest_abc", "1", "Carve a pumpkin", "notes.txt", "text/plain", []byte("hi")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.photosOnDisk(t))
}

func TestUploadPhotoTooLarge(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)
	f.cfg.MaxPhotoSize = 16

	rec := f.do(uploadRequest(t, "quest_abc", "1", "Carve a pumpkin", "p.jpg", "image/jpeg", bytes.Repeat([]byte("a"), 64)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.photosOnDisk(t))
}

func TestUploadPhotoMissingFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(uploadRequest(t, "", "nan", "", "p.jpg", "image/jpeg", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPhotoNotifyFailure(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)
	f.notifier.err = context.DeadlineExceeded

	rec := f.do(uploadRequest(t, "quest_abc", "1", "Carve a pumpkin", "p.jpg", "image/jpeg", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The submission and the file stay; no compensating cleanup.
	assert.Equal(t, 1, f.photosOnDisk(t))
}

func TestPhotoStatusUnknown(t *testing.T) {
	f := newFixture(t)

	code, _ := pollStatus(t, f, "nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestApproveScenario(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	rec := f.do(uploadRequest(t, "quest_abc", "7", "Carve a pumpkin", "p.jpg", "image/jpeg", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SubmissionID string `json:"submission_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	reviewed, err := f.svc.ReviewSubmission(context.Background(), body.SubmissionID, models.SubmissionStatusApproved, nil)
	require.NoError(t, err)
	require.True(t, reviewed)

	code, status := pollStatus(t, f, body.SubmissionID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", status.Status)
	assert.Nil(t, status.Comment)
	assert.NotNil(t, status.ReviewedAt)
}

func TestRejectWithCommentScenario(t *testing.T) {
	f := newFixture(t)
	f.linkParent(t, "quest_abc", 42)

	rec := f.do(uploadRequest(t, "quest_abc", "7", "Carve a pumpkin", "p.jpg", "image/jpeg", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SubmissionID string `json:"submission_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	comment := "try a sharper cut"
	reviewed, err := f.svc.ReviewSubmission(context.Background(), body.SubmissionID, models.SubmissionStatusRejected, &comment)
	require.NoError(t, err)
	require.True(t, reviewed)

	code, status := pollStatus(t, f, body.SubmissionID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "rejected", status.Status)
	require.NotNil(t, status.Comment)
	assert.Equal(t, "try a sharper cut", *status.Comment)
}

func TestSessionPhotosPlaceholder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/session/quest_abc/photos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Feature not implemented yet", body["message"])
}

func TestCORSAllowedOrigin(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://quest.example.com")
	rec := f.do(req)

	assert.Equal(t, "https://quest.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := f.do(req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/upload-photo", nil)
	req.Header.Set("Origin", "https://quest.example.com")
	rec := f.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPhotoExtension(t *testing.T) {
	assert.Equal(t, "jpg", photoExtension("photo"))
	assert.Equal(t, "png", photoExtension("shot.PNG"))
	assert.Equal(t, "jpeg", photoExtension("a.b.jpeg"))
}
