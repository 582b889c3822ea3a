// Package http exposes the bot's inbound surface: the Slack events and
// interactivity endpoints plus health and metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/approvalbot/approvalbot/internal/core"
	"github.com/approvalbot/approvalbot/internal/slack"
	"github.com/approvalbot/approvalbot/internal/telemetry"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	router        *core.Router
	svc           core.Services
	gate          *core.Gate
	signingSecret string
	approver      string
	srv           *http.Server
	logger        *slog.Logger
}

func NewServer(addr string, router *core.Router, svc core.Services, gate *core.Gate, signingSecret, approver string, logger *slog.Logger) *Server {
	s := &Server{
		router:        router,
		svc:           svc,
		gate:          gate,
		signingSecret: signingSecret,
		approver:      approver,
		logger:        logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("POST /slack/interactions", s.handleInteractions)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// verifiedBody reads and signature-checks the request body. A failed check
// writes the response itself and returns nil.
func (s *Server) verifiedBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return nil
	}
	err = slack.VerifySignature(
		s.signingSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		body,
		time.Now(),
	)
	if err != nil {
		s.logger.Warn("rejected unsigned request", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusUnauthorized, "signature verification failed")
		return nil
	}
	return body
}

// handleEvents acknowledges every delivery immediately; any work the message
// triggers runs on its own goroutine and reports back by posting follow-up
// messages. Slack retries deliveries that are not acknowledged in time, so
// nothing slow may happen before the 200.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body := s.verifiedBody(w, r)
	if body == nil {
		return
	}

	var cb slack.EventCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	switch cb.Type {
	case slack.CallbackURLVerification:
		writeJSON(w, http.StatusOK, map[string]string{"challenge": cb.Challenge})
		return
	case slack.CallbackEvent:
		if cb.Event.Type == "message" {
			event := core.MessageEvent{
				Text:     cb.Event.Text,
				Channel:  cb.Event.Channel,
				ThreadTS: cb.Event.TS,
				User:     cb.Event.Requester(),
			}
			go s.routeMessage(event)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) routeMessage(event core.MessageEvent) {
	logger := s.logger.With("trace_id", uuid.NewString())
	defer func() {
		// One event's failure must not take the process down with it.
		if rec := recover(); rec != nil {
			logger.Error("panic handling message event", "panic", rec)
		}
	}()

	svc := s.svc
	svc.Logger = logger
	if name := s.router.Dispatch(context.Background(), event, svc); name == "" {
		logger.Debug("no workflow matched", "channel", event.Channel)
	}
}

func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	body := s.verifiedBody(w, r)
	if body == nil {
		return
	}

	in, err := slack.ParseInteraction(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Type != "block_actions" || len(in.Actions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	var action core.Action
	switch in.Actions[0].ActionID {
	case slack.ActionApprove:
		action = core.ActionApprove
	case slack.ActionReject:
		action = core.ActionDecline
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	number, err := strconv.Atoi(in.Actions[0].Value)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid change request number: "+in.Actions[0].Value)
		return
	}

	go s.resolveChange(in.Channel.ID, in.Message.TS, in.User.ID, number, action)
	w.WriteHeader(http.StatusOK)
}

// resolveChange runs the approval gate and reports the result back into the
// conversation: the card is rewritten on success, the actor is told privately
// when unauthorized, and other failures go to the channel.
func (s *Server) resolveChange(channel, messageTS, actor string, number int, action core.Action) {
	logger := s.logger.With("trace_id", uuid.NewString(), "number", number, "actor", actor)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic resolving change request", "panic", rec)
		}
	}()

	ctx := context.Background()
	outcome, err := s.gate.Resolve(ctx, number, actor, action)
	if err != nil {
		var unauth *core.UnauthorizedError
		if errors.As(err, &unauth) {
			telemetry.IncApproval("unauthorized")
			logger.Warn("unauthorized resolution attempt")
			verb := "approve"
			if action == core.ActionDecline {
				verb = "decline"
			}
			text := fmt.Sprintf("🚫 You're not authorized to %s this request.", verb)
			if postErr := s.svc.Chat.PostEphemeral(ctx, channel, actor, text); postErr != nil {
				logger.Error("ephemeral notice failed", "err", postErr)
			}
			return
		}

		telemetry.IncApproval("error")
		logger.Error("change request resolution failed", "err", err)
		verb := "merge"
		if action == core.ActionDecline {
			verb = "decline"
		}
		text := fmt.Sprintf("❌ Failed to %s PR #%d: `%v`", verb, number, err)
		if postErr := s.svc.Chat.PostMessage(ctx, channel, "", text); postErr != nil {
			logger.Error("failure notice post failed", "err", postErr)
		}
		return
	}

	telemetry.IncApproval(string(outcome))
	logger.Info("change request resolved", "outcome", outcome)
	if err := s.svc.Chat.UpdateResolved(ctx, channel, messageTS, actor, outcome); err != nil {
		logger.Error("approval card update failed", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	approver := s.approver
	if approver == "" {
		approver = "NOT SET"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "approver": approver})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	io.WriteString(w, telemetry.RenderPrometheus())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
