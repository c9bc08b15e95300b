package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/regnantlabs/regent/internal/errors"
)

// SlackAdapter bridges a Slack workspace to the command bus. Channel
// messages that start with "/" are treated as governance commands; replies
// go back to the originating channel.
type SlackAdapter struct {
	signingSecret string
	botToken      string
	commander     *Commander
	server        *http.Server
	port          int
	client        *slack.Client
}

func NewSlackAdapter(port int, signingSecret, botToken string, commander *Commander) *SlackAdapter {
	if signingSecret == "" {
		signingSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
	if botToken == "" {
		botToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	return &SlackAdapter{
		signingSecret: signingSecret,
		botToken:      botToken,
		commander:     commander,
		port:          port,
		client:        slack.New(botToken),
	}
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

func (s *SlackAdapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		slog.Info("slack adapter listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("slack server failed", "error", err)
		}
	}()

	<-ctx.Done()
	return s.server.Shutdown(context.Background())
}

func (s *SlackAdapter) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SlackAdapter) Send(ctx context.Context, threadID string, content string) error {
	_, _, err := s.client.PostMessageContext(ctx, threadID, slack.MsgOptionText(content, false))
	if err != nil {
		return errors.Wrap(err, "failed to send slack message")
	}
	return nil
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	if s.server == nil {
		return errors.Transient("slack server not started")
	}
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return errors.Transient("slack connection failed")
	}
	return nil
}

func (s *SlackAdapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, err := sv.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := sv.Ensure(); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if eventsAPIEvent.Type == slackevents.URLVerification {
		var challenge *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	}

	if eventsAPIEvent.Type == slackevents.CallbackEvent {
		switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Ignore bot messages
			if ev.BotID != "" {
				break
			}
			reply, handled := s.commander.Handle(r.Context(), s.Name(), ev.User, ev.Channel, ev.Text)
			if handled {
				if err := s.Send(r.Context(), ev.Channel, reply); err != nil {
					slog.Error("slack reply failed", "channel", ev.Channel, "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}
