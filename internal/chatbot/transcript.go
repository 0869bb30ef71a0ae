package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// MaxTranscript bounds the messages kept per session.
const MaxTranscript = 50

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Topic     Topic     `json:"topic,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is a session's conversation so far.
type Transcript struct {
	Messages []Message `json:"messages"`
}

func (t *Transcript) append(msgs ...Message) {
	t.Messages = append(t.Messages, msgs...)
	if n := len(t.Messages); n > MaxTranscript {
		t.Messages = append([]Message(nil), t.Messages[n-MaxTranscript:]...)
	}
}

// Observer records which topics the bot answered.
type Observer interface {
	ObserveChatReply(topic string)
}

// Service pairs the bot with per-session transcripts.
type Service struct {
	bot         *Bot
	transcripts session.Store[Transcript]
	observer    Observer
	logger      *logging.Logger
	now         func() time.Time
}

// NewService creates a chat service.
func NewService(bot *Bot, transcripts session.Store[Transcript], observer Observer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{bot: bot, transcripts: transcripts, observer: observer, logger: logger, now: time.Now}
}

// History returns the transcript, starting it with the welcome message when new.
func (s *Service) History(ctx context.Context, sid string) (Transcript, error) {
	t, ok, err := s.transcripts.Get(ctx, sid)
	if err != nil {
		return Transcript{}, fmt.Errorf("chatbot: load transcript: %w", err)
	}
	if ok && len(t.Messages) > 0 {
		return t, nil
	}
	w := s.bot.Welcome()
	t.append(s.assistant(w))
	if err := s.transcripts.Put(ctx, sid, t); err != nil {
		return Transcript{}, fmt.Errorf("chatbot: save transcript: %w", err)
	}
	return t, nil
}

// Ask answers text and records both sides. A transcript failure is logged
// and the reply is still returned.
func (s *Service) Ask(ctx context.Context, sid, text string) Reply {
	reply := s.bot.Respond(text)
	if s.observer != nil {
		s.observer.ObserveChatReply(string(reply.Topic))
	}

	t, err := s.History(ctx, sid)
	if err != nil {
		s.logger.Warn("chatbot: transcript unavailable", "session_id", sid, "error", err)
		return reply
	}
	t.append(Message{Role: "user", Text: text, Timestamp: s.now().UTC()}, s.assistant(reply))
	if err := s.transcripts.Put(ctx, sid, t); err != nil {
		s.logger.Warn("chatbot: transcript save failed", "session_id", sid, "error", err)
	}
	return reply
}

func (s *Service) assistant(r Reply) Message {
	return Message{Role: "assistant", Text: r.Text, Topic: r.Topic, Actions: r.Actions, Timestamp: s.now().UTC()}
}
