// Package booking implements the appointment wizard: a linear multi-step
// form (service, date and time, contact details) that ends in one notify
// request to the clinic.
package booking

import (
	"errors"
	"strings"
	"time"
)

// State is a wizard step.
type State string

const (
	StateSelectingService    State = "selecting_service"
	StateSelectingDateTime   State = "selecting_date_time"
	StateEnteringContactInfo State = "entering_contact_info"
	StateSubmitting          State = "submitting"
	StateSuccess             State = "success"
	StateError               State = "error"
)

var (
	ErrInvalidTransition = errors.New("booking: action not allowed in current step")
	ErrServiceRequired   = errors.New("booking: a concrete service must be selected")
	ErrInvalidDate       = errors.New("booking: invalid date")
	ErrDateNotSelectable = errors.New("booking: date is not available for booking")
	ErrDateRequired      = errors.New("booking: select a date first")
	ErrInvalidTime       = errors.New("booking: time is not one of the offered slots")
	ErrNameRequired      = errors.New("booking: name is required")
	ErrPhoneRequired     = errors.New("booking: phone is required")
	ErrConsentRequired   = errors.New("booking: consent to personal data processing is required")
	ErrDraftNotFound     = errors.New("booking: wizard not found")
)

// Messages shown inline next to the form.
var validationMessages = map[error]string{
	ErrInvalidTransition: "Это действие сейчас недоступно",
	ErrServiceRequired:   "Выберите услугу",
	ErrInvalidDate:       "Некорректная дата",
	ErrDateNotSelectable: "Запись на эту дату недоступна",
	ErrDateRequired:      "Сначала выберите дату",
	ErrInvalidTime:       "Выберите время из списка",
	ErrNameRequired:      "Укажите имя",
	ErrPhoneRequired:     "Укажите телефон",
	ErrConsentRequired:   "Необходимо согласие на обработку персональных данных",
}

// ValidationMessage returns the user-facing text for a validation error,
// or "" when err is not one.
func ValidationMessage(err error) string {
	for sentinel, msg := range validationMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}

// Contact is the patient's contact step.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Comment string `json:"comment,omitempty"`
}

// Draft is everything the patient has entered so far.
type Draft struct {
	SelectedService string  `json:"selected_service,omitempty"`
	ServiceName     string  `json:"service_name,omitempty"`
	SelectedDate    string  `json:"selected_date,omitempty"`
	SelectedTime    string  `json:"selected_time,omitempty"`
	Doctor          string  `json:"doctor,omitempty"`
	Contact         Contact `json:"contact"`
	ConsentGiven    bool    `json:"consent_given"`
}

// Wizard is one open appointment dialog.
type Wizard struct {
	ID       string     `json:"id"`
	State    State      `json:"state"`
	Category string     `json:"category,omitempty"`
	Draft    Draft      `json:"draft"`
	Error    string     `json:"error,omitempty"`
	ResetAt  *time.Time `json:"reset_at,omitempty"`
}

// NewWizard opens an empty wizard. With a preselected service it starts on
// the date and time step.
func NewWizard(id, serviceID, serviceName, doctor string) *Wizard {
	w := &Wizard{ID: id, State: StateSelectingService}
	w.Draft.Doctor = doctor
	if serviceID != "" {
		w.Draft.SelectedService = serviceID
		w.Draft.ServiceName = serviceName
		w.State = StateSelectingDateTime
	}
	return w
}

// SelectCategory focuses a category. It narrows the visible services and
// clears the concrete selection; the wizard stays on the service step.
func (w *Wizard) SelectCategory(categoryID string) error {
	if w.State != StateSelectingService {
		return ErrInvalidTransition
	}
	w.Category = categoryID
	w.Draft.SelectedService = ""
	w.Draft.ServiceName = ""
	return nil
}

// SelectService picks a bookable service and moves to the date step.
func (w *Wizard) SelectService(serviceID, name string) error {
	if w.State != StateSelectingService {
		return ErrInvalidTransition
	}
	if serviceID == "" {
		return ErrServiceRequired
	}
	w.Draft.SelectedService = serviceID
	w.Draft.ServiceName = name
	w.State = StateSelectingDateTime
	return nil
}

// SelectDate sets the appointment date if it is selectable at now.
func (w *Wizard) SelectDate(d, now time.Time) error {
	if w.State != StateSelectingDateTime {
		return ErrInvalidTransition
	}
	if !IsSelectableDate(d, now) {
		return ErrDateNotSelectable
	}
	w.Draft.SelectedDate = d.Format(DateLayout)
	return nil
}

// SelectTime sets the slot and moves to the contact step.
func (w *Wizard) SelectTime(t string, slots []string) error {
	if w.State != StateSelectingDateTime {
		return ErrInvalidTransition
	}
	if w.Draft.SelectedDate == "" {
		return ErrDateRequired
	}
	if !containsSlot(slots, t) {
		return ErrInvalidTime
	}
	w.Draft.SelectedTime = t
	w.State = StateEnteringContactInfo
	return nil
}

// SetContact records the contact form. Allowed on the contact step and
// after a failed submission.
func (w *Wizard) SetContact(c Contact, consent bool) error {
	if w.State != StateEnteringContactInfo && w.State != StateError {
		return ErrInvalidTransition
	}
	w.Draft.Contact = Contact{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Comment: strings.TrimSpace(c.Comment),
	}
	w.Draft.ConsentGiven = consent
	return nil
}

// CanContinue reports whether the current step's primary action is enabled.
func (w *Wizard) CanContinue() bool {
	switch w.State {
	case StateSelectingService:
		return w.Draft.SelectedService != ""
	case StateSelectingDateTime:
		return w.Draft.SelectedDate != "" && w.Draft.SelectedTime != ""
	case StateEnteringContactInfo, StateError:
		return w.validateContact() == nil
	}
	return false
}

func (w *Wizard) validateContact() error {
	switch {
	case w.Draft.Contact.Name == "":
		return ErrNameRequired
	case w.Draft.Contact.Phone == "":
		return ErrPhoneRequired
	case !w.Draft.ConsentGiven:
		return ErrConsentRequired
	}
	return nil
}

// BeginSubmit validates the contact step and moves to Submitting. On a
// validation error the state is left unchanged.
func (w *Wizard) BeginSubmit() error {
	if w.State != StateEnteringContactInfo && w.State != StateError {
		return ErrInvalidTransition
	}
	if w.Draft.SelectedService == "" {
		return ErrServiceRequired
	}
	if err := w.validateContact(); err != nil {
		return err
	}
	w.State = StateSubmitting
	w.Error = ""
	return nil
}

// CompleteSubmit records the outcome of the notify request.
func (w *Wizard) CompleteSubmit(err error, resetAt time.Time) {
	if w.State != StateSubmitting {
		return
	}
	if err != nil {
		w.State = StateError
		w.Error = MsgSubmitFailed
		return
	}
	w.State = StateSuccess
	w.ResetAt = &resetAt
}

// Back steps backwards keeping the data already entered.
func (w *Wizard) Back() error {
	switch w.State {
	case StateEnteringContactInfo, StateError:
		w.State = StateSelectingDateTime
		w.Error = ""
	case StateSelectingDateTime:
		w.State = StateSelectingService
	default:
		return ErrInvalidTransition
	}
	return nil
}

// Reset discards the draft, as when the dialog closes.
func (w *Wizard) Reset() {
	*w = Wizard{ID: w.ID, State: StateSelectingService}
}

// expireSuccess resets a successful wizard once its auto-close delay passed.
func (w *Wizard) expireSuccess(now time.Time) bool {
	if w.State == StateSuccess && w.ResetAt != nil && !now.Before(*w.ResetAt) {
		w.Reset()
		return true
	}
	return false
}
