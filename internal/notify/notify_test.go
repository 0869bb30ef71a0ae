package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeInvoker struct {
	path  string
	body  any
	err   error
	calls int
}

func (f *fakeInvoker) InvokeFunction(_ context.Context, path string, body any) error {
	f.calls++
	f.path = path
	f.body = body
	return f.err
}

type fakeRelay struct {
	name string
	err  error
	got  []Submission
}

func (f *fakeRelay) Name() string { return f.name }

func (f *fakeRelay) Relay(_ context.Context, s Submission) error {
	f.got = append(f.got, s)
	return f.err
}

type countingObserver struct{ outcomes []string }

func (c *countingObserver) ObserveNotify(kind, outcome string) {
	c.outcomes = append(c.outcomes, kind+":"+outcome)
}

func TestClientSendPostsSubmission(t *testing.T) {
	inv := &fakeInvoker{}
	relay := &fakeRelay{name: "a"}
	obs := &countingObserver{}
	c := NewClient(inv, "/functions/v1/notify", nil, relay).WithObserver(obs)

	sub := Submission{Kind: KindAppointment, Data: AppointmentPayload{Service: "Чистка", Name: "Анна", Phone: "+7"}}
	if err := c.Send(context.Background(), sub); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if inv.path != "/functions/v1/notify" {
		t.Fatalf("path = %q", inv.path)
	}
	got, ok := inv.body.(Submission)
	if !ok || got.Kind != KindAppointment {
		t.Fatalf("body = %#v", inv.body)
	}
	if len(relay.got) != 1 {
		t.Fatalf("relay calls = %d", len(relay.got))
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "appointment:ok" {
		t.Fatalf("outcomes = %v", obs.outcomes)
	}
}

func TestClientSendFailureSkipsRelays(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("boom")}
	relay := &fakeRelay{name: "a"}
	c := NewClient(inv, "", nil, relay)

	err := c.Send(context.Background(), Submission{Kind: KindOrder})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(relay.got) != 0 {
		t.Fatal("relay must not run after primary failure")
	}
	if inv.path != "/functions/v1/notify" {
		t.Fatalf("default path = %q", inv.path)
	}
}

func TestRelayFailureIsNotReturned(t *testing.T) {
	inv := &fakeInvoker{}
	bad := &fakeRelay{name: "bad", err: errors.New("down")}
	good := &fakeRelay{name: "good"}
	c := NewClient(inv, "", nil, bad, good)

	if err := c.Send(context.Background(), Submission{Kind: KindReview}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(good.got) != 1 {
		t.Fatal("second relay should still run")
	}
}

func TestSummaries(t *testing.T) {
	order := OrderPayload{
		OrderID: "ord-1", Name: "Иван", Phone: "+7900",
		Items:    []OrderLine{{Name: "Щётка", Quantity: 2, Price: "500"}},
		Discount: "100", Total: "900", PromoCode: "SMILE",
	}
	s := Submission{Kind: KindOrder, Data: order}.Summary()
	for _, want := range []string{"ord-1", "Щётка × 2", "SMILE", "Итого: 900"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}

	fallback := Submission{Kind: KindLoyalty, Data: map[string]string{"x": "y"}}.Summary()
	if !strings.Contains(fallback, "loyalty") {
		t.Errorf("fallback summary = %q", fallback)
	}
}

type fakeTelegram struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramRelaySendsSummary(t *testing.T) {
	api := &fakeTelegram{}
	r := NewTelegramRelayWithAPI(api, 42, nil)

	sub := Submission{Kind: KindReview, Data: ReviewPayload{Name: "Олег", Rating: 5, Text: "Спасибо"}}
	if err := r.Relay(context.Background(), sub); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T", api.sent[0])
	}
	if msg.ChatID != 42 || !strings.Contains(msg.Text, "Спасибо") {
		t.Fatalf("message = %+v", msg)
	}
}

func TestNewTelegramRelayUnconfigured(t *testing.T) {
	r, err := NewTelegramRelay("", 0, nil)
	if err != nil || r != nil {
		t.Fatalf("got %v, %v", r, err)
	}
}

type recordingEmail struct {
	msgs []EmailMessage
	fail map[string]bool
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.msgs = append(r.msgs, msg)
	if r.fail[msg.To] {
		return errors.New("rejected")
	}
	return nil
}

func TestEmailRelayFansOut(t *testing.T) {
	sender := &recordingEmail{fail: map[string]bool{"b@clinic.ru": true}}
	r := NewEmailRelay(sender, []string{"a@clinic.ru", "b@clinic.ru"})

	err := r.Relay(context.Background(), Submission{Kind: KindAppointment, Data: AppointmentPayload{Name: "Анна"}})
	if err == nil || !strings.Contains(err.Error(), "b@clinic.ru") {
		t.Fatalf("err = %v", err)
	}
	if len(sender.msgs) != 2 || sender.msgs[0].Subject != "Новая запись на приём" {
		t.Fatalf("msgs = %+v", sender.msgs)
	}
}

func TestEmailRelayRequiresRecipients(t *testing.T) {
	if NewEmailRelay(&recordingEmail{}, nil) != nil {
		t.Fatal("expected nil relay without recipients")
	}
	if NewEmailRelay(nil, []string{"a@b"}) != nil {
		t.Fatal("expected nil relay without sender")
	}
}

func TestNewSendGridSenderWithoutKey(t *testing.T) {
	if NewSendGridSender(SendGridConfig{}, nil) != nil {
		t.Fatal("expected nil sender without API key")
	}
	s := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "noreply@clinic.ru"}, nil)
	if s == nil || s.fromName != "Клиника" {
		t.Fatalf("sender = %+v", s)
	}
}

type fakeSES struct {
	in *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESSenderBuildsInput(t *testing.T) {
	api := &fakeSES{}
	s := NewSESSender(api, SESConfig{FromEmail: "noreply@clinic.ru"}, nil)
	if err := s.Send(context.Background(), EmailMessage{To: "a@clinic.ru", Subject: "Тема", Body: "Текст"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := aws.ToString(api.in.FromEmailAddress); got != "Клиника <noreply@clinic.ru>" {
		t.Fatalf("from = %q", got)
	}
	if api.in.Content.Simple.Body.Html != nil {
		t.Fatal("html body should be omitted")
	}
}
