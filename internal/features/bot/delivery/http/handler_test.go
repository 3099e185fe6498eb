package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tipjar-backend/internal/common/errors"
)

type recordingHandler struct {
	updates []*tgbotapi.Update
	err     error
}

func (r *recordingHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	r.updates = append(r.updates, update)
	return r.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Healthy(ctx context.Context) error {
	return f.err
}

func newTestApp(updates UpdateHandler, store Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	app := gin.New()
	NewWebhookHandler(updates, store, "s3cret").RegisterRoutes(app)
	return app
}

func post(app *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

const messageUpdate = `{"update_id":1,"message":{"message_id":2,"from":{"id":7,"is_bot":false,"username":"alice"},"chat":{"id":7,"type":"private"},"text":"/balance"}}`

func TestWebhookRejectsWrongSecret(t *testing.T) {
	handler := &recordingHandler{}
	app := newTestApp(handler, &fakePinger{})

	w := post(app, "/webhook/wrong", messageUpdate)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, handler.updates)
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	handler := &recordingHandler{}
	app := newTestApp(handler, &fakePinger{})

	w := post(app, "/webhook/s3cret", "{not json")

	assert.Equal(t, http.StatusOK, w.Code, "Telegram must never be told to retry")
	assert.Empty(t, handler.updates)
}

func TestWebhookAcksIrrelevantUpdate(t *testing.T) {
	handler := &recordingHandler{}
	app := newTestApp(handler, &fakePinger{})

	w := post(app, "/webhook/s3cret", `{"update_id":3,"edited_message":{"message_id":4}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, handler.updates)
}

func TestWebhookDispatchesMessage(t *testing.T) {
	handler := &recordingHandler{}
	app := newTestApp(handler, &fakePinger{})

	w := post(app, "/webhook/s3cret", messageUpdate)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, handler.updates, 1)
	require.NotNil(t, handler.updates[0].Message)
	assert.Equal(t, "/balance", handler.updates[0].Message.Text)
}

func TestWebhookAcksHandlerFailure(t *testing.T) {
	handler := &recordingHandler{err: apperrors.NewLedgerError("transfer", assert.AnError)}
	app := newTestApp(handler, &fakePinger{})

	w := post(app, "/webhook/s3cret", messageUpdate)

	assert.Equal(t, http.StatusOK, w.Code, "handler failures stay behind the ack")
	assert.Len(t, handler.updates, 1)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(&recordingHandler{}, &fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestHealthzDegraded(t *testing.T) {
	app := newTestApp(&recordingHandler{}, &fakePinger{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}
