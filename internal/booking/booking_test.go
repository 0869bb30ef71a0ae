package booking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/notify"
	"github.com/smiledent/clinic-site/internal/querycache"
	"github.com/smiledent/clinic-site/internal/session"
)

// Monday 2 March 2026, 10:00 UTC.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	services []catalog.Service
	err      error
}

func (f *fakeCatalog) Service(_ context.Context, id string) (catalog.Service, error) {
	if f.err != nil {
		return catalog.Service{}, f.err
	}
	for _, s := range f.services {
		if s.ID == id {
			return s, nil
		}
	}
	return catalog.Service{}, catalog.ErrNotFound
}

func (f *fakeCatalog) Services(_ context.Context, categoryID string) querycache.Result[[]catalog.Service] {
	if f.err != nil {
		return querycache.Result[[]catalog.Service]{Err: f.err}
	}
	var out []catalog.Service
	for _, s := range f.services {
		if categoryID == "" || s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return querycache.Result[[]catalog.Service]{Data: out}
}

type fakeNotifier struct {
	calls []notify.Submission
	err   error
}

func (f *fakeNotifier) Send(_ context.Context, s notify.Submission) error {
	f.calls = append(f.calls, s)
	return f.err
}

type outcomes map[string]int

func (o outcomes) ObserveAppointment(outcome string) { o[outcome]++ }

func newTestService(t *testing.T, n *fakeNotifier) (*Service, outcomes) {
	t.Helper()
	cat := &fakeCatalog{services: []catalog.Service{
		{ID: "braces", CategoryID: "ortho", Name: "Брекеты", Price: decimal.NewFromInt(90000)},
		{ID: "aligners", CategoryID: "ortho", Name: "Элайнеры", Price: decimal.NewFromInt(150000)},
		{ID: "cleaning", CategoryID: "hygiene", Name: "Профессиональная чистка", Price: decimal.NewFromInt(5000)},
	}}
	obs := outcomes{}
	sched := Schedule{StartHour: 9, EndHour: 20, Interval: 30, Location: time.UTC}
	svc := NewService(session.NewMemoryStore[Wizard](time.Hour), cat, n, Options{Schedule: sched, Observer: obs}, nil)
	svc.now = func() time.Time { return testNow }
	return svc, obs
}

func TestGenerateTimeSlots(t *testing.T) {
	slots := GenerateTimeSlots(9, 20, 30)
	if len(slots) != 22 {
		t.Fatalf("expected 22 slots, got %d", len(slots))
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "19:30" {
		t.Fatalf("unexpected range %s..%s", slots[0], slots[len(slots)-1])
	}
	for _, s := range slots {
		if s >= "20:00" {
			t.Errorf("slot %s at or after closing", s)
		}
	}
	if GenerateTimeSlots(9, 9, 30) != nil || GenerateTimeSlots(9, 20, 0) != nil {
		t.Error("degenerate ranges should yield no slots")
	}
}

func TestIsSelectableDate(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"yesterday", testNow.AddDate(0, 0, -1), false},
		{"last year", testNow.AddDate(-1, 0, 0), false},
		{"today morning", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false},
		{"today evening", time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), false},
		{"tomorrow tuesday", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), true},
		{"friday", time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), true},
		{"saturday", time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), false},
		{"next monday", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSelectableDate(tt.date, testNow); got != tt.want {
				t.Errorf("IsSelectableDate(%s) = %v, want %v", tt.date.Format(DateLayout), got, tt.want)
			}
		})
	}
}

func TestIsSelectableDateNeverPastOrWeekend(t *testing.T) {
	for i := -400; i < 400; i++ {
		d := testNow.AddDate(0, 0, i)
		if !IsSelectableDate(d, testNow) {
			continue
		}
		if i <= 0 {
			t.Fatalf("offset %d selectable", i)
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("%s is a weekend", d.Format(DateLayout))
		}
	}
}

func TestSelectableDates(t *testing.T) {
	got := SelectableDates(testNow, 7, testNow)
	want := []string{"2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubmitWithoutConsentNeverSubmits(t *testing.T) {
	n := &fakeNotifier{}
	svc, obs := newTestService(t, n)
	ctx := context.Background()
	step := stepper(t)

	w, err := svc.Open(ctx, "cleaning", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	step(svc.SelectDate(ctx, w.ID, "2026-03-03"))
	step(svc.SelectTime(ctx, w.ID, "10:30"))
	step(svc.SetContact(ctx, w.ID, Contact{Name: "Анна", Phone: "+79990000000"}, false))

	for i := 0; i < 3; i++ {
		got, err := svc.Submit(ctx, w.ID)
		if !errors.Is(err, ErrConsentRequired) {
			t.Fatalf("expected ErrConsentRequired, got %v", err)
		}
		if got.State != StateEnteringContactInfo {
			t.Fatalf("state changed to %s", got.State)
		}
	}
	stored, _ := svc.Get(ctx, w.ID)
	if stored.State != StateEnteringContactInfo {
		t.Fatalf("stored state = %s", stored.State)
	}
	if len(n.calls) != 0 {
		t.Fatal("no request may be sent without consent")
	}
	if ValidationMessage(ErrConsentRequired) == "" {
		t.Fatal("consent error must have a user-facing message")
	}
	if obs["invalid"] != 3 {
		t.Fatalf("outcomes = %v", obs)
	}
}

func TestCategoryNarrowsThenServiceAdvances(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	ctx := context.Background()

	w, err := svc.Open(ctx, "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if w.State != StateSelectingService {
		t.Fatalf("state = %s", w.State)
	}

	w, services, err := svc.SelectCategory(ctx, w.ID, "ortho")
	if err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	if w.State != StateSelectingService || w.CanContinue() {
		t.Fatalf("category must not be bookable: state=%s canContinue=%v", w.State, w.CanContinue())
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 orthodontic services, got %d", len(services))
	}
	for _, s := range services {
		if s.CategoryID != "ortho" {
			t.Errorf("service %s outside category", s.ID)
		}
	}

	w, err = svc.SelectService(ctx, w.ID, "braces")
	if err != nil {
		t.Fatalf("SelectService: %v", err)
	}
	if w.State != StateSelectingDateTime {
		t.Fatalf("state = %s", w.State)
	}
}

func TestOpenWithPreselectedService(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	w, err := svc.Open(context.Background(), "braces", "Иванова А.")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if w.State != StateSelectingDateTime || w.Draft.ServiceName != "Брекеты" || w.Draft.Doctor != "Иванова А." {
		t.Fatalf("wizard = %+v", w)
	}
	if _, err := svc.Open(context.Background(), "missing", ""); !errors.Is(err, ErrServiceRequired) {
		t.Fatalf("unknown service err = %v", err)
	}
}

func TestDateAndTimeValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	ctx := context.Background()
	step := stepper(t)
	w, _ := svc.Open(ctx, "cleaning", "")

	if _, err := svc.SelectTime(ctx, w.ID, "10:00"); !errors.Is(err, ErrDateRequired) {
		t.Fatalf("time before date: %v", err)
	}
	if _, err := svc.SelectDate(ctx, w.ID, "2026-03-07"); !errors.Is(err, ErrDateNotSelectable) {
		t.Fatalf("saturday: %v", err)
	}
	if _, err := svc.SelectDate(ctx, w.ID, "2026-03-02"); !errors.Is(err, ErrDateNotSelectable) {
		t.Fatalf("today: %v", err)
	}
	if _, err := svc.SelectDate(ctx, w.ID, "03/04/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("bad format: %v", err)
	}
	step(svc.SelectDate(ctx, w.ID, "2026-03-04"))
	if _, err := svc.SelectTime(ctx, w.ID, "20:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("closing time: %v", err)
	}
	w = step(svc.SelectTime(ctx, w.ID, "19:30"))
	if w.State != StateEnteringContactInfo {
		t.Fatalf("state = %s", w.State)
	}
}

func TestBackKeepsSelections(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	ctx := context.Background()
	step := stepper(t)
	w, _ := svc.Open(ctx, "cleaning", "")
	step(svc.SelectDate(ctx, w.ID, "2026-03-04"))
	step(svc.SelectTime(ctx, w.ID, "11:00"))

	w = step(svc.Back(ctx, w.ID))
	if w.State != StateSelectingDateTime || w.Draft.SelectedTime != "11:00" {
		t.Fatalf("after first back: %+v", w)
	}
	w = step(svc.Back(ctx, w.ID))
	if w.State != StateSelectingService || w.Draft.SelectedService != "cleaning" || !w.CanContinue() {
		t.Fatalf("after second back: %+v", w)
	}
	if _, err := svc.Back(ctx, w.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("back from first step: %v", err)
	}
}

func TestSubmitSuccessThenReset(t *testing.T) {
	n := &fakeNotifier{}
	svc, obs := newTestService(t, n)
	ctx := context.Background()

	w := fillWizard(t, svc)
	w, err := svc.Submit(ctx, w.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if w.State != StateSuccess {
		t.Fatalf("state = %s", w.State)
	}
	if len(n.calls) != 1 || n.calls[0].Kind != notify.KindAppointment {
		t.Fatalf("calls = %+v", n.calls)
	}
	payload := n.calls[0].Data.(notify.AppointmentPayload)
	if payload.Service != "Профессиональная чистка" || payload.Date != "2026-03-04" || payload.Time != "12:00" || payload.Phone != "+79990000000" {
		t.Fatalf("payload = %+v", payload)
	}
	if _, err := svc.Submit(ctx, w.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resubmit after success: %v", err)
	}

	svc.now = func() time.Time { return testNow.Add(DefaultSuccessReset) }
	w, err = svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if w.State != StateSelectingService || w.Draft != (Draft{}) {
		t.Fatalf("wizard not reset: %+v", w)
	}
	if obs["success"] != 1 {
		t.Fatalf("outcomes = %v", obs)
	}
}

func TestSubmitFailureAllowsResubmit(t *testing.T) {
	n := &fakeNotifier{err: errors.New("502")}
	svc, _ := newTestService(t, n)
	ctx := context.Background()

	w := fillWizard(t, svc)
	w, err := svc.Submit(ctx, w.ID)
	if err == nil || w.State != StateError || w.Error != MsgSubmitFailed {
		t.Fatalf("expected error state, got %v %+v", err, w)
	}
	if len(n.calls) != 1 {
		t.Fatal("request must not be retried automatically")
	}

	n.err = nil
	w, err = svc.Submit(ctx, w.ID)
	if err != nil || w.State != StateSuccess {
		t.Fatalf("resubmit: %v %+v", err, w)
	}
}

func TestHandlerFlow(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	srv := httptest.NewServer(NewHandler(svc, nil).Routes())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/wizard", `{"service_id":"cleaning"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open status %d", resp.StatusCode)
	}
	var opened View
	decodeBody(t, resp, &opened)
	id := opened.Wizard.ID

	resp = doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/date", `{"date":"2026-03-08"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sunday status %d", resp.StatusCode)
	}
	var bad errorBody
	decodeBody(t, resp, &bad)
	if bad.Error != "Запись на эту дату недоступна" {
		t.Fatalf("error = %q", bad.Error)
	}

	resp = doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/date", `{"date":"2026-03-09"}`)
	var dated View
	decodeBody(t, resp, &dated)
	if len(dated.Slots) != 22 {
		t.Fatalf("slots = %v", dated.Slots)
	}

	doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/time", `{"time":"09:00"}`).Body.Close()
	doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/contact", `{"name":"Анна","phone":"+7999","consent":false}`).Body.Close()
	resp = doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/submit", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("submit without consent status %d", resp.StatusCode)
	}
	resp.Body.Close()

	doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/contact", `{"name":"Анна","phone":"+7999","consent":true}`).Body.Close()
	resp = doJSON(t, srv, http.MethodPost, "/wizard/"+id+"/submit", "")
	var done View
	decodeBody(t, resp, &done)
	if done.Wizard.State != StateSuccess || done.AutoCloseMs != 3000 {
		t.Fatalf("done = %+v", done)
	}

	resp = doJSON(t, srv, http.MethodGet, "/wizard/unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown wizard status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandlerBackendFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	svc.catalog = &fakeCatalog{err: errors.New("connection refused")}
	srv := httptest.NewServer(NewHandler(svc, nil).Routes())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/wizard", `{"service_id":"cleaning"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDatesEndpoint(t *testing.T) {
	svc, _ := newTestService(t, &fakeNotifier{})
	srv := httptest.NewServer(NewHandler(svc, nil).Routes())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/dates?from=2026-03-06&days=4", "")
	var body struct {
		Dates []string `json:"dates"`
	}
	decodeBody(t, resp, &body)
	if strings.Join(body.Dates, ",") != "2026-03-06,2026-03-09" {
		t.Fatalf("dates = %v", body.Dates)
	}
}

func fillWizard(t *testing.T, svc *Service) *Wizard {
	t.Helper()
	ctx := context.Background()
	step := stepper(t)
	w, err := svc.Open(ctx, "cleaning", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	step(svc.SelectDate(ctx, w.ID, "2026-03-04"))
	step(svc.SelectTime(ctx, w.ID, "12:00"))
	return step(svc.SetContact(ctx, w.ID, Contact{Name: " Анна ", Phone: "+79990000000"}, true))
}

func stepper(t *testing.T) func(*Wizard, error) *Wizard {
	return func(w *Wizard, err error) *Wizard {
		t.Helper()
		if err != nil {
			t.Fatalf("step failed: %v", err)
		}
		return w
	}
}
