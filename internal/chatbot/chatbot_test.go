package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/smiledent/clinic-site/internal/session"
)

func testBot() *Bot {
	return NewBot(Config{Phone: "+74950000000", ChatURL: "https://t.me/clinic_admin"})
}

func TestRespondTopics(t *testing.T) {
	bot := testBot()
	tests := []struct {
		msg  string
		want Topic
	}{
		{"Покажите карту сайта", TopicSiteMap},
		{"открой раздел блог", TopicNavigate},
		{"Хочу записаться к вам", TopicBooking},
		{"Сколько стоит имплант?", TopicPricing},
		{"Какие у вас врачи?", TopicStaff},
		{"Где почитать отзывы?", TopicReviews},
		{"Какой у вас адрес", TopicContacts},
		{"Какой график работы?", TopicHours},
		{"Очень болит зуб", TopicEmergency},
		{"Привет", TopicHelp},
		{"на главную", TopicHome},
		{"абракадабра", TopicFallback},
		{"   ", TopicFallback},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := bot.Respond(tt.msg).Topic; got != tt.want {
				t.Errorf("Respond(%q) topic = %s, want %s", tt.msg, got, tt.want)
			}
		})
	}
}

func TestPromotionsAlwaysWin(t *testing.T) {
	bot := testBot()
	msgs := []string{
		"акции",
		"Какие сейчас АКЦИИ?",
		"хочу записаться, есть акции на чистку?",
		"цены и акции",
		"болит зуб, а акции есть",
		"покажи акции",
		"карта сайта и акции",
		"врачи акции отзывы контакты",
	}
	for _, m := range msgs {
		if got := bot.Respond(m).Topic; got != TopicPromotions {
			t.Errorf("Respond(%q) topic = %s, want promotions", m, got)
		}
	}
}

func TestNavigationTargets(t *testing.T) {
	bot := testBot()
	tests := map[string]string{
		"перейти в магазин":             "/marketplace",
		"открой программу лояльности":   "/loyalty",
		"покажи портфолио":              "/portfolio",
		"открыть страницу faq":          "/faq",
		"перейди на страницу контактов": "/contacts",
	}
	for msg, want := range tests {
		r := bot.Respond(msg)
		if r.Topic != TopicNavigate || len(r.Actions) != 1 || r.Actions[0].Target != want {
			t.Errorf("Respond(%q) = %+v, want navigate %s", msg, r, want)
		}
	}
}

func TestFallbackOffersHelpActions(t *testing.T) {
	bot := testBot()
	fb := bot.Respond("ыыы")
	help := bot.Respond("помощь")
	if len(fb.Actions) == 0 || len(fb.Actions) != len(help.Actions) {
		t.Fatalf("fallback actions %v vs help %v", fb.Actions, help.Actions)
	}
	for i := range fb.Actions {
		if fb.Actions[i] != help.Actions[i] {
			t.Errorf("action %d differs: %+v vs %+v", i, fb.Actions[i], help.Actions[i])
		}
	}
	var hasCall, hasLink bool
	for _, a := range fb.Actions {
		hasCall = hasCall || (a.Kind == ActionCall && a.Target == "tel:+74950000000")
		hasLink = hasLink || (a.Kind == ActionLink && a.Target == "https://t.me/clinic_admin")
	}
	if !hasCall || !hasLink {
		t.Errorf("fallback actions missing call/link: %+v", fb.Actions)
	}
}

func TestEmergencyWithoutChatURL(t *testing.T) {
	bot := NewBot(Config{Phone: "+7"})
	r := bot.Respond("срочно, опухла щека")
	if r.Topic != TopicEmergency || len(r.Actions) != 1 || r.Actions[0].Kind != ActionCall {
		t.Fatalf("reply = %+v", r)
	}
}

type topics map[string]int

func (o topics) ObserveChatReply(topic string) { o[topic]++ }

func TestServiceTranscriptBounded(t *testing.T) {
	obs := topics{}
	svc := NewService(testBot(), session.NewMemoryStore[Transcript](time.Hour), obs, nil)
	ctx := context.Background()

	h, err := svc.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Messages) != 1 || h.Messages[0].Topic != TopicWelcome {
		t.Fatalf("history = %+v", h.Messages)
	}

	for i := 0; i < 40; i++ {
		svc.Ask(ctx, "s1", "цены")
	}
	h, _ = svc.History(ctx, "s1")
	if len(h.Messages) != MaxTranscript {
		t.Fatalf("transcript length = %d", len(h.Messages))
	}
	last := h.Messages[len(h.Messages)-1]
	if last.Role != "assistant" || last.Topic != TopicPricing {
		t.Fatalf("last = %+v", last)
	}
	if obs["pricing"] != 40 {
		t.Fatalf("observed = %v", obs)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := NewService(testBot(), session.NewMemoryStore[Transcript](time.Hour), nil, nil)
	h := NewHandler(svc, nil)
	withSession := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(session.HeaderName); id != "" {
			ctx = session.WithID(ctx, id)
		}
		h.Routes().ServeHTTP(w, r.WithContext(ctx))
	})
	srv := httptest.NewServer(withSession)
	t.Cleanup(srv.Close)
	return srv
}

func TestAskEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/", strings.NewReader(`{"text":"Какие акции?"}`))
	req.Header.Set(session.HeaderName, "sess-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out OutboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Topic != TopicPromotions || out.Actions[0].Target != "/promotions" {
		t.Fatalf("reply = %+v", out)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/", strings.NewReader(`{"text":"hi"}`))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing session status %d", resp2.StatusCode)
	}
}

func TestWebSocketConversation(t *testing.T) {
	srv := newTestServer(t)
	sid := session.NewID()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + sid

	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var first OutboundMessage
	if err := websocket.JSON.Receive(conn, &first); err != nil {
		t.Fatalf("receive session: %v", err)
	}
	if first.Type != "session" || first.SessionID != sid {
		t.Fatalf("first = %+v", first)
	}
	var history OutboundMessage
	if err := websocket.JSON.Receive(conn, &history); err != nil {
		t.Fatalf("receive history: %v", err)
	}
	if history.Type != "history" || len(history.Messages) != 1 {
		t.Fatalf("history = %+v", history)
	}

	if err := websocket.JSON.Send(conn, InboundMessage{Type: "ping"}); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	var pong OutboundMessage
	_ = websocket.JSON.Receive(conn, &pong)
	if pong.Type != "pong" {
		t.Fatalf("pong = %+v", pong)
	}

	if err := websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "Как записаться?"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var reply OutboundMessage
	if err := websocket.JSON.Receive(conn, &reply); err != nil {
		t.Fatalf("receive reply: %v", err)
	}
	if reply.Type != "message" || reply.Topic != TopicBooking {
		t.Fatalf("reply = %+v", reply)
	}
}
