package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/notify"
	"github.com/smiledent/clinic-site/internal/querycache"
	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// MsgSubmitFailed is shown when the appointment request could not be sent.
const MsgSubmitFailed = "Не удалось отправить заявку. Попробуйте ещё раз или позвоните нам."

// DefaultSuccessReset is how long the success screen stays before the wizard resets.
const DefaultSuccessReset = 3 * time.Second

// ServiceCatalog looks up bookable services.
type ServiceCatalog interface {
	Service(ctx context.Context, id string) (catalog.Service, error)
	Services(ctx context.Context, categoryID string) querycache.Result[[]catalog.Service]
}

// Observer records appointment submission outcomes.
type Observer interface {
	ObserveAppointment(outcome string)
}

// DraftStore keeps open wizards by id.
type DraftStore = session.Store[Wizard]

// Options tune the wizard service.
type Options struct {
	Schedule     Schedule
	SuccessReset time.Duration
	Observer     Observer
}

// Service drives wizards stored in a DraftStore.
type Service struct {
	store        DraftStore
	catalog      ServiceCatalog
	notifier     notify.Sender
	schedule     Schedule
	successReset time.Duration
	observer     Observer
	logger       *logging.Logger
	now          func() time.Time
	newID        func() string
}

// NewService creates the wizard service.
func NewService(store DraftStore, cat ServiceCatalog, notifier notify.Sender, opts Options, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Schedule.Interval <= 0 {
		opts.Schedule = DefaultSchedule()
	}
	if opts.Schedule.Location == nil {
		opts.Schedule.Location = time.UTC
	}
	if opts.SuccessReset <= 0 {
		opts.SuccessReset = DefaultSuccessReset
	}
	return &Service{
		store:        store,
		catalog:      cat,
		notifier:     notifier,
		schedule:     opts.Schedule,
		successReset: opts.SuccessReset,
		observer:     opts.Observer,
		logger:       logger,
		now:          time.Now,
		newID:        session.NewID,
	}
}

// Schedule returns the configured bookable day.
func (s *Service) Schedule() Schedule { return s.schedule }

// SuccessReset returns the auto-close delay after a successful submission.
func (s *Service) SuccessReset() time.Duration { return s.successReset }

func (s *Service) clock() time.Time {
	return s.now().In(s.schedule.Location)
}

// Open starts a wizard, optionally with a preselected service and doctor.
func (s *Service) Open(ctx context.Context, serviceID, doctor string) (*Wizard, error) {
	var name string
	if serviceID != "" {
		svc, err := s.lookupService(ctx, serviceID)
		if err != nil {
			return nil, err
		}
		name = svc.Name
	}
	w := NewWizard(s.newID(), serviceID, name, doctor)
	if err := s.store.Put(ctx, w.ID, *w); err != nil {
		return nil, fmt.Errorf("booking: save wizard: %w", err)
	}
	return w, nil
}

// Get loads a wizard, resetting it if its success screen has timed out.
func (s *Service) Get(ctx context.Context, id string) (*Wizard, error) {
	w, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking: load wizard: %w", err)
	}
	if !ok {
		return nil, ErrDraftNotFound
	}
	if w.expireSuccess(s.now()) {
		if err := s.store.Put(ctx, w.ID, w); err != nil {
			return nil, fmt.Errorf("booking: save wizard: %w", err)
		}
	}
	return &w, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Wizard) error) (*Wizard, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return w, err
	}
	if err := s.store.Put(ctx, w.ID, *w); err != nil {
		return nil, fmt.Errorf("booking: save wizard: %w", err)
	}
	return w, nil
}

// SelectCategory narrows the service list and returns the services in it.
func (s *Service) SelectCategory(ctx context.Context, id, categoryID string) (*Wizard, []catalog.Service, error) {
	w, err := s.mutate(ctx, id, func(w *Wizard) error { return w.SelectCategory(categoryID) })
	if err != nil {
		return w, nil, err
	}
	res := s.catalog.Services(ctx, categoryID)
	if res.Err != nil {
		return w, nil, fmt.Errorf("booking: load services: %w", res.Err)
	}
	return w, res.Data, nil
}

// SelectService picks a concrete service.
func (s *Service) SelectService(ctx context.Context, id, serviceID string) (*Wizard, error) {
	if serviceID == "" {
		return nil, ErrServiceRequired
	}
	svc, err := s.lookupService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(w *Wizard) error { return w.SelectService(svc.ID, svc.Name) })
}

func (s *Service) lookupService(ctx context.Context, serviceID string) (catalog.Service, error) {
	svc, err := s.catalog.Service(ctx, serviceID)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Service{}, fmt.Errorf("%w: %s", ErrServiceRequired, serviceID)
	}
	if err != nil {
		return catalog.Service{}, fmt.Errorf("booking: load service: %w", err)
	}
	return svc, nil
}

// SelectDate sets the appointment date (DateLayout).
func (s *Service) SelectDate(ctx context.Context, id, date string) (*Wizard, error) {
	d, err := ParseDate(date, s.schedule.Location)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(w *Wizard) error { return w.SelectDate(d, s.clock()) })
}

// SelectTime sets the slot.
func (s *Service) SelectTime(ctx context.Context, id, slot string) (*Wizard, error) {
	slots := s.schedule.Slots()
	return s.mutate(ctx, id, func(w *Wizard) error { return w.SelectTime(slot, slots) })
}

// SetContact records the contact form.
func (s *Service) SetContact(ctx context.Context, id string, c Contact, consent bool) (*Wizard, error) {
	return s.mutate(ctx, id, func(w *Wizard) error { return w.SetContact(c, consent) })
}

// Back steps backwards.
func (s *Service) Back(ctx context.Context, id string) (*Wizard, error) {
	return s.mutate(ctx, id, func(w *Wizard) error { return w.Back() })
}

// Submit validates the draft and sends one appointment request. A failed
// request leaves the wizard in StateError for a manual resubmit.
func (s *Service) Submit(ctx context.Context, id string) (*Wizard, error) {
	w, err := s.mutate(ctx, id, func(w *Wizard) error { return w.BeginSubmit() })
	if err != nil {
		if ValidationMessage(err) != "" {
			s.observe("invalid")
		}
		return w, err
	}

	payload := notify.AppointmentPayload{
		Service: w.Draft.ServiceName,
		Date:    w.Draft.SelectedDate,
		Time:    w.Draft.SelectedTime,
		Doctor:  w.Draft.Doctor,
		Name:    w.Draft.Contact.Name,
		Phone:   w.Draft.Contact.Phone,
		Comment: w.Draft.Contact.Comment,
	}
	if payload.Service == "" {
		payload.Service = w.Draft.SelectedService
	}
	sendErr := s.notifier.Send(ctx, notify.Submission{Kind: notify.KindAppointment, Data: payload})
	w.CompleteSubmit(sendErr, s.now().Add(s.successReset))

	if sendErr != nil {
		s.observe("error")
		s.logger.Error("booking: appointment request failed", "wizard_id", w.ID, "error", sendErr)
	} else {
		s.observe("success")
		s.logger.Info("booking: appointment requested", "wizard_id", w.ID, "service", w.Draft.SelectedService, "date", w.Draft.SelectedDate, "time", w.Draft.SelectedTime)
	}
	if err := s.store.Put(ctx, w.ID, *w); err != nil {
		return nil, fmt.Errorf("booking: save wizard: %w", err)
	}
	if sendErr != nil {
		return w, fmt.Errorf("booking: submit: %w", sendErr)
	}
	return w, nil
}

// Close discards the wizard.
func (s *Service) Close(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("booking: close wizard: %w", err)
	}
	return nil
}

// SelectableDates lists bookable dates starting at from.
func (s *Service) SelectableDates(from time.Time, days int) []string {
	return SelectableDates(from, days, s.clock())
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveAppointment(outcome)
	}
}
