package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, outcome Outcome, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func newTestRouter(mailer Mailer, recorder OutcomeRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(mailer, HandlerConfig{Sender: testSender, EscapeHTML: true}, recorder, nil)
	h.Register(r)
	return r
}

func post(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))
	return w, out
}

func TestSubmitSuccess(t *testing.T) {
	mailer := &fakeMailer{}
	recorder := &fakeRecorder{}
	r := newTestRouter(mailer, recorder)

	w, out := post(t, r, `{"name":"Ann","email":"ann@example.com","subject":"Hi","message":"Hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"ok": true}, out)
	require.Equal(t, 1, mailer.calls())
	require.Equal(t, "ann@example.com", mailer.sent[0].ReplyTo)
	require.Equal(t, "Portfolio: Hi", mailer.sent[0].Subject)
	require.Equal(t, "inbox@example.com", mailer.sent[0].To)
	require.Equal(t, []Outcome{OutcomeSent}, recorder.outcomes)
}

func TestSubmitMissingFields(t *testing.T) {
	bodies := map[string]string{
		"no name":      `{"email":"ann@example.com","message":"Hello"}`,
		"no email":     `{"name":"Ann","message":"Hello"}`,
		"no message":   `{"name":"Ann","email":"ann@example.com"}`,
		"empty name":   `{"name":"","email":"ann@example.com","message":"Hello"}`,
		"empty object": `{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			mailer := &fakeMailer{}
			recorder := &fakeRecorder{}
			w, out := post(t, newTestRouter(mailer, recorder), body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, map[string]any{"error": "Missing fields"}, out)
			require.Zero(t, mailer.calls())
			require.Equal(t, []Outcome{OutcomeRejected}, recorder.outcomes)
		})
	}
}

func TestSubmitInvalidEmail(t *testing.T) {
	// JSON-escaped so control and Unicode space characters survive the body.
	for _, email := range []string{
		"not-an-email", "ann@example", "@example.com",
		`a\u00a0@b.c`, `a@b\u2028.c`, `a\u000b@b.c`, `ann\u3000@example.com`,
	} {
		t.Run(email, func(t *testing.T) {
			mailer := &fakeMailer{}
			body := `{"name":"Ann","email":"` + email + `","message":"Hello"}`
			w, out := post(t, newTestRouter(mailer, nil), body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, map[string]any{"error": "Invalid email address"}, out)
			require.Zero(t, mailer.calls())
		})
	}
}

func TestSubmitSanitizesSubject(t *testing.T) {
	mailer := &fakeMailer{}
	w, _ := post(t, newTestRouter(mailer, nil),
		`{"name":"Ann","email":"ann@example.com","subject":"Hi\r\nBcc: evil@x.com","message":"Hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, mailer.calls())
	require.NotContains(t, mailer.sent[0].Subject, "\r")
	require.NotContains(t, mailer.sent[0].Subject, "\n")
	require.Equal(t, "Portfolio: HiBcc: evil@x.com", mailer.sent[0].Subject)
}

func TestSubmitDefaultSubject(t *testing.T) {
	mailer := &fakeMailer{}
	w, _ := post(t, newTestRouter(mailer, nil), `{"name":"Ann","email":"ann@example.com","message":"Hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Portfolio: New message", mailer.sent[0].Subject)
}

func TestSubmitDispatchFailure(t *testing.T) {
	mailer := &fakeMailer{err: &DispatchError{Err: errors.New("535 authentication failed")}}
	recorder := &fakeRecorder{}
	w, out := post(t, newTestRouter(mailer, recorder), `{"name":"Ann","email":"ann@example.com","subject":"Hi","message":"Hello"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, map[string]any{"error": "Internal server error"}, out)
	require.Equal(t, 1, mailer.calls())
	require.Equal(t, []Outcome{OutcomeFailed}, recorder.outcomes)
}

func TestSubmitMalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":    `name=Ann`,
		"null":        `null`,
		"array":       `[]`,
		"empty":       ``,
		"wrong types": `{"name":1,"email":"ann@example.com","message":"Hello"}`,
	} {
		t.Run(name, func(t *testing.T) {
			mailer := &fakeMailer{}
			w, out := post(t, newTestRouter(mailer, nil), body)

			require.Equal(t, http.StatusInternalServerError, w.Code)
			require.Equal(t, map[string]any{"error": "Internal server error"}, out)
			require.Zero(t, mailer.calls())
		})
	}
}

type panicMailer struct{}

func (panicMailer) Send(context.Context, *Message) error { panic("boom") }

func TestRecoveryAnswersGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	NewHandler(panicMailer{}, HandlerConfig{Sender: testSender}, nil, nil).Register(r)

	w, out := post(t, r, `{"name":"Ann","email":"ann@example.com","message":"Hello"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, map[string]any{"error": "Internal server error"}, out)
}

func TestRecordersFanOut(t *testing.T) {
	a, b := &fakeRecorder{}, &fakeRecorder{}
	Recorders{a, b}.RecordOutcome(context.Background(), OutcomeSent, time.Millisecond)
	require.Equal(t, []Outcome{OutcomeSent}, a.outcomes)
	require.Equal(t, []Outcome{OutcomeSent}, b.outcomes)
}
