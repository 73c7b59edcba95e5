package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mailpeek/mailpeek/internal/compose"
	"github.com/mailpeek/mailpeek/internal/ingest"
)

type fakeEventSink struct {
	fileEvents []ingest.FileEvent
	mentions   []string
	err        error
}

func (s *fakeEventSink) HandleFileShared(_ context.Context, ev ingest.FileEvent) error {
	s.fileEvents = append(s.fileEvents, ev)
	return s.err
}

func (s *fakeEventSink) HandleMention(_ context.Context, channelID, threadTS, text string) error {
	s.mentions = append(s.mentions, channelID+"/"+threadTS+": "+text)
	return s.err
}

type fakeActionSink struct {
	actions []compose.Action
	err     error
}

func (s *fakeActionSink) Handle(_ context.Context, action compose.Action) error {
	s.actions = append(s.actions, action)
	return s.err
}

type handlerEnv struct {
	handler *Handler
	events  *fakeEventSink
	actions *fakeActionSink
	now     time.Time
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	now := time.Unix(1700000000, 0)
	verifier := NewVerifier("secret")
	verifier.SetClock(func() time.Time { return now })
	events := &fakeEventSink{}
	actions := &fakeActionSink{}
	return &handlerEnv{
		handler: NewHandler(nil, verifier, events, actions),
		events:  events,
		actions: actions,
		now:     now,
	}
}

func (env *handlerEnv) signedRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(headerTimestamp, fmt.Sprint(env.now.Unix()))
	req.Header.Set(headerSignature, signBody("secret", env.now.Unix(), []byte(body)))
	return req
}

func serve(t *testing.T, h *Handler, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.Handle(c)
}

func TestHandlerAnswersChallengeWithoutSignature(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/slack/events",
		strings.NewReader(`{"type":"url_verification","challenge":"abc123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, err := serve(t, env.handler, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.String() != "abc123" {
		t.Fatalf("unexpected challenge response: %q", rec.Body.String())
	}
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback","event":{"type":"file_shared","file_id":"F1"}}`
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(headerTimestamp, fmt.Sprint(env.now.Unix()))
	req.Header.Set(headerSignature, "v0=deadbeef")

	_, err := serve(t, env.handler, req)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if len(env.events.fileEvents) != 0 {
		t.Fatal("expected no processing after auth failure")
	}
}

func TestHandlerRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback"}`
	old := env.now.Add(-time.Hour).Unix()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(headerTimestamp, fmt.Sprint(old))
	req.Header.Set(headerSignature, signBody("secret", old, []byte(body)))

	_, err := serve(t, env.handler, req)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	req := env.signedRequest(`{"type":`, echo.MIMEApplicationJSON)

	_, err := serve(t, env.handler, req)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandlerDispatchesMessageFileShare(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback","event":{"type":"message","subtype":"file_share","channel":"C1","user":"U1","ts":"111.222","files":[{"id":"F1","name":"report.eml","mimetype":"message/rfc822","size":2048,"url_private_download":"https://files.example.com/F1"}]}}`

	rec, err := serve(t, env.handler, env.signedRequest(body, echo.MIMEApplicationJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(env.events.fileEvents) != 1 {
		t.Fatalf("expected one file event, got %d", len(env.events.fileEvents))
	}
	got := env.events.fileEvents[0]
	want := ingest.FileEvent{
		FileID:      "F1",
		Filename:    "report.eml",
		Mimetype:    "message/rfc822",
		DownloadURL: "https://files.example.com/F1",
		Size:        2048,
		Channel:     "C1",
		ThreadTS:    "111.222",
		UserID:      "U1",
	}
	if got != want {
		t.Fatalf("unexpected file event: %+v", got)
	}
}

func TestHandlerDispatchesStandaloneFileShared(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback","event":{"type":"file_shared","file_id":"F2","channel_id":"C2","user_id":"U2"}}`

	rec, err := serve(t, env.handler, env.signedRequest(body, echo.MIMEApplicationJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(env.events.fileEvents) != 1 {
		t.Fatalf("expected one file event, got %d", len(env.events.fileEvents))
	}
	got := env.events.fileEvents[0]
	if got.FileID != "F2" || got.Channel != "C2" || got.UserID != "U2" || got.ThreadTS != "" {
		t.Fatalf("unexpected file event: %+v", got)
	}
}

func TestHandlerReturnsOKWhenProcessingFails(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	env.events.err = errors.New("downstream broken")
	body := `{"type":"event_callback","event":{"type":"file_shared","file_id":"F3"}}`

	rec, err := serve(t, env.handler, env.signedRequest(body, echo.MIMEApplicationJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite processing failure, got %d", rec.Code)
	}
}

func TestHandlerDispatchesMention(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback","event":{"type":"app_mention","channel":"C1","ts":"5.6","thread_ts":"1.2","text":"<@UBOT> status"}}`

	if _, err := serve(t, env.handler, env.signedRequest(body, echo.MIMEApplicationJSON)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.events.mentions) != 1 || !strings.HasPrefix(env.events.mentions[0], "C1/1.2:") {
		t.Fatalf("unexpected mentions: %v", env.events.mentions)
	}
}

func TestHandlerIgnoresUnrelatedEvents(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	body := `{"type":"event_callback","event":{"type":"message","channel":"C1","text":"plain chat"}}`

	rec, err := serve(t, env.handler, env.signedRequest(body, echo.MIMEApplicationJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(env.events.fileEvents) != 0 || len(env.events.mentions) != 0 {
		t.Fatal("expected plain message to be ignored")
	}
}

func TestHandlerDispatchesBlockAction(t *testing.T) {
	t.Parallel()

	env := newHandlerEnv(t)
	payload := `{"type":"block_actions","trigger_id":"T1","user":{"id":"U1"},"channel":{"id":"C1"},"container":{"message_ts":"111.222"},"actions":[{"block_id":"b1","action_id":"mailpeek_show_full","value":"content:1700000000:F1"}]}`
	form := url.Values{"payload": {payload}}.Encode()

	rec, err := serve(t, env.handler, env.signedRequest(form, echo.MIMEApplicationForm))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(env.actions.actions) != 1 {
		t.Fatalf("expected one action, got %d", len(env.actions.actions))
	}
	got := env.actions.actions[0]
	want := compose.Action{
		ActionID:   compose.ActionShowFull,
		ContentKey: "content:1700000000:F1",
		ChannelID:  "C1",
		MessageTS:  "111.222",
		UserID:     "U1",
		TriggerID:  "T1",
	}
	if got != want {
		t.Fatalf("unexpected action: %+v", got)
	}
}
