// Package forms validates the site's secondary forms (loyalty signup, job
// application, review) and relays them to the clinic through notify.
package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smiledent/clinic-site/internal/notify"
	"github.com/smiledent/clinic-site/pkg/logging"
)

var (
	ErrNameRequired     = errors.New("forms: name is required")
	ErrPhoneRequired    = errors.New("forms: phone is required")
	ErrConsentRequired  = errors.New("forms: consent is required")
	ErrUnknownPlan      = errors.New("forms: unknown loyalty plan")
	ErrPositionRequired = errors.New("forms: position is required")
	ErrInvalidRating    = errors.New("forms: rating must be between 1 and 5")
	ErrTextRequired     = errors.New("forms: review text is required")
	ErrTextTooLong      = errors.New("forms: text is too long")
)

const maxTextLen = 2000

// Plan is a loyalty program tier.
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PricePerMon int      `json:"price_per_month"`
	Perks       []string `json:"perks"`
}

// Plans are the loyalty tiers offered on the site.
var Plans = []Plan{
	{ID: "basic", Name: "Базовый", PricePerMon: 990, Perks: []string{"Профгигиена раз в полгода", "Скидка 5% на лечение"}},
	{ID: "family", Name: "Семейный", PricePerMon: 2490, Perks: []string{"До 4 членов семьи", "Профгигиена раз в полгода", "Скидка 10% на лечение"}},
	{ID: "premium", Name: "Премиум", PricePerMon: 4990, Perks: []string{"Профгигиена раз в квартал", "Скидка 15% на лечение", "Приоритетная запись"}},
}

func findPlan(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

type LoyaltySignup struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	PlanID  string `json:"plan_id"`
	Consent bool   `json:"consent"`
}

func (s *LoyaltySignup) Validate() error {
	trim(&s.Name, &s.Phone, &s.Email)
	if err := requireContact(s.Name, s.Phone); err != nil {
		return err
	}
	if _, ok := findPlan(s.PlanID); !ok {
		return ErrUnknownPlan
	}
	if !s.Consent {
		return ErrConsentRequired
	}
	return nil
}

type JobApplication struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Position   string `json:"position"`
	Experience string `json:"experience,omitempty"`
	Message    string `json:"message,omitempty"`
	Consent    bool   `json:"consent"`
}

func (a *JobApplication) Validate() error {
	trim(&a.Name, &a.Phone, &a.Email, &a.Position, &a.Experience, &a.Message)
	if err := requireContact(a.Name, a.Phone); err != nil {
		return err
	}
	if a.Position == "" {
		return ErrPositionRequired
	}
	if utf8.RuneCountInString(a.Message) > maxTextLen {
		return ErrTextTooLong
	}
	if !a.Consent {
		return ErrConsentRequired
	}
	return nil
}

type Review struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
	Doctor string `json:"doctor,omitempty"`
}

func (r *Review) Validate() error {
	trim(&r.Name, &r.Text, &r.Doctor)
	switch {
	case r.Name == "":
		return ErrNameRequired
	case r.Rating < 1 || r.Rating > 5:
		return ErrInvalidRating
	case r.Text == "":
		return ErrTextRequired
	case utf8.RuneCountInString(r.Text) > maxTextLen:
		return ErrTextTooLong
	}
	return nil
}

func requireContact(name, phone string) error {
	if name == "" {
		return ErrNameRequired
	}
	if phone == "" {
		return ErrPhoneRequired
	}
	return nil
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// Service validates forms and relays them.
type Service struct {
	notifier notify.Sender
	logger   *logging.Logger
}

// NewService creates a forms service.
func NewService(notifier notify.Sender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{notifier: notifier, logger: logger}
}

func (s *Service) send(ctx context.Context, kind notify.Kind, data any) error {
	if err := s.notifier.Send(ctx, notify.Submission{Kind: kind, Data: data}); err != nil {
		return fmt.Errorf("forms: send %s: %w", kind, err)
	}
	s.logger.Info("forms: submission relayed", "kind", kind)
	return nil
}

// SignUpLoyalty relays a loyalty program signup.
func (s *Service) SignUpLoyalty(ctx context.Context, in LoyaltySignup) error {
	if err := in.Validate(); err != nil {
		return err
	}
	plan, _ := findPlan(in.PlanID)
	return s.send(ctx, notify.KindLoyalty, notify.LoyaltyPayload{Name: in.Name, Phone: in.Phone, Email: in.Email, Plan: plan.Name})
}

// Apply relays a job application.
func (s *Service) Apply(ctx context.Context, in JobApplication) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return s.send(ctx, notify.KindJobApplication, notify.JobApplicationPayload{
		Name: in.Name, Phone: in.Phone, Email: in.Email,
		Position: in.Position, Experience: in.Experience, Message: in.Message,
	})
}

// SubmitReview relays a patient review.
func (s *Service) SubmitReview(ctx context.Context, in Review) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return s.send(ctx, notify.KindReview, notify.ReviewPayload{Name: in.Name, Rating: in.Rating, Text: in.Text, Doctor: in.Doctor})
}
