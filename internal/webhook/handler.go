package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"

	"github.com/mailpeek/mailpeek/internal/compose"
	"github.com/mailpeek/mailpeek/internal/ingest"
)

type eventSink interface {
	HandleFileShared(ctx context.Context, ev ingest.FileEvent) error
	HandleMention(ctx context.Context, channelID, threadTS, text string) error
}

type actionSink interface {
	Handle(ctx context.Context, action compose.Action) error
}

const maxBodyBytes int64 = 1 << 20 // 1 MiB

// Handler receives event-subscription and interactivity callbacks on a
// single public endpoint.
type Handler struct {
	logger   *slog.Logger
	verifier *Verifier
	events   eventSink
	actions  actionSink
}

func NewHandler(log *slog.Logger, verifier *Verifier, events eventSink, actions actionSink) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:   log.With(slog.String("handler", "slack_webhook")),
		verifier: verifier,
		events:   events,
		actions:  actions,
	}
}

// Register registers webhook callback routes.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/slack/events", h.HandleProbe)
	e.POST("/slack/events", h.Handle)
}

// HandleProbe responds to health/probe requests on the webhook URL.
func (h *Handler) HandleProbe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handle processes one webhook delivery. Recognized deliveries are always
// answered 200 regardless of internal outcome; a deterministic non-200
// would only feed the platform's retry loop.
func (h *Handler) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > maxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", maxBodyBytes))
	}

	// The setup handshake is answered before authentication: the platform
	// sends it while the endpoint may not yet have the signing secret
	// distributed. Callers without a secret learn only that the URL is alive.
	if env, ok := decodeEnvelope(body); ok && env.Type == envelopeURLVerification {
		return c.String(http.StatusOK, env.Challenge)
	}

	log := h.logger.With(slog.String("delivery_id", uuid.NewString()))

	if err := h.verifier.Verify(
		c.Request().Header.Get(headerTimestamp),
		c.Request().Header.Get(headerSignature),
		body,
	); err != nil {
		log.Warn("rejected webhook delivery", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid request signature")
	}

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEApplicationForm) {
		return h.handleInteraction(c, log, body)
	}
	return h.handleEvent(c, log, body)
}

func (h *Handler) handleEvent(c echo.Context, log *slog.Logger, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid event payload: %v", err))
	}
	if env.Type != envelopeEventCallback || len(env.Event) == 0 {
		return c.NoContent(http.StatusOK)
	}
	var ev innerEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid inner event: %v", err))
	}

	ctx := c.Request().Context()
	if ev.Type == eventTypeAppMention {
		if err := h.events.HandleMention(ctx, ev.Channel, ev.threadAnchor(), ev.Text); err != nil {
			log.Error("mention handling failed", slog.Any("error", err))
		}
		return c.NoContent(http.StatusOK)
	}
	for _, fe := range ev.fileEvents() {
		if err := h.events.HandleFileShared(ctx, fe); err != nil {
			log.Error("file event handling failed",
				slog.String("file_id", fe.FileID),
				slog.Any("error", err))
		}
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) handleInteraction(c echo.Context, log *slog.Logger, body []byte) error {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid form body: %v", err))
	}
	payload := form.Get("payload")
	if payload == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing interaction payload")
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid interaction payload: %v", err))
	}
	if cb.Type != slack.InteractionTypeBlockActions {
		return c.NoContent(http.StatusOK)
	}

	messageTS := cb.Container.MessageTs
	if messageTS == "" {
		messageTS = cb.Message.Timestamp
	}
	ctx := c.Request().Context()
	for _, ba := range cb.ActionCallback.BlockActions {
		if ba == nil {
			continue
		}
		action := compose.Action{
			ActionID:   ba.ActionID,
			ContentKey: ba.Value,
			ChannelID:  cb.Channel.ID,
			MessageTS:  messageTS,
			UserID:     cb.User.ID,
			TriggerID:  cb.TriggerID,
		}
		if err := h.actions.Handle(ctx, action); err != nil {
			log.Error("interaction handling failed",
				slog.String("action_id", ba.ActionID),
				slog.Any("error", err))
		}
	}
	return c.NoContent(http.StatusOK)
}

func decodeEnvelope(body []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}
