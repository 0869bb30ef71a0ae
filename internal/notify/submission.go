package notify

import (
	"fmt"
	"strings"
)

// Kind identifies the form a submission came from.
type Kind string

const (
	KindAppointment    Kind = "appointment"
	KindOrder          Kind = "order"
	KindLoyalty        Kind = "loyalty"
	KindJobApplication Kind = "job_application"
	KindReview         Kind = "review"
)

// Submission is the JSON body accepted by the notify function.
type Submission struct {
	Kind Kind `json:"type"`
	Data any  `json:"data"`
}

// Summarizer renders a payload as a human-readable message for relays.
type Summarizer interface {
	Summary() string
}

type AppointmentPayload struct {
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Doctor  string `json:"doctor,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Comment string `json:"comment,omitempty"`
}

func (p AppointmentPayload) Summary() string {
	lines := []string{
		"🦷 Новая запись на приём",
		"Услуга: " + p.Service,
		fmt.Sprintf("Дата и время: %s %s", p.Date, p.Time),
	}
	if p.Doctor != "" {
		lines = append(lines, "Врач: "+p.Doctor)
	}
	lines = append(lines, "Имя: "+p.Name, "Телефон: "+p.Phone)
	if p.Comment != "" {
		lines = append(lines, "Комментарий: "+p.Comment)
	}
	return strings.Join(lines, "\n")
}

type OrderLine struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type OrderPayload struct {
	OrderID   string      `json:"order_id"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	Email     string      `json:"email,omitempty"`
	Comment   string      `json:"comment,omitempty"`
	Items     []OrderLine `json:"items"`
	Subtotal  string      `json:"subtotal"`
	Discount  string      `json:"discount"`
	Total     string      `json:"total"`
	PromoCode string      `json:"promo_code,omitempty"`
}

func (p OrderPayload) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 Новый заказ %s\n", p.OrderID)
	fmt.Fprintf(&b, "Покупатель: %s, %s\n", p.Name, p.Phone)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "• %s × %d — %s ₽\n", it.Name, it.Quantity, it.Price)
	}
	if p.PromoCode != "" {
		fmt.Fprintf(&b, "Промокод: %s (−%s ₽)\n", p.PromoCode, p.Discount)
	}
	fmt.Fprintf(&b, "Итого: %s ₽", p.Total)
	if p.Comment != "" {
		fmt.Fprintf(&b, "\nКомментарий: %s", p.Comment)
	}
	return b.String()
}

type LoyaltyPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan"`
}

func (p LoyaltyPayload) Summary() string {
	return fmt.Sprintf("⭐ Заявка в программу лояльности\nТариф: %s\nИмя: %s\nТелефон: %s", p.Plan, p.Name, p.Phone)
}

type JobApplicationPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Position   string `json:"position"`
	Experience string `json:"experience,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (p JobApplicationPayload) Summary() string {
	s := fmt.Sprintf("💼 Отклик на вакансию «%s»\nИмя: %s\nТелефон: %s", p.Position, p.Name, p.Phone)
	if p.Experience != "" {
		s += "\nОпыт: " + p.Experience
	}
	return s
}

type ReviewPayload struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
	Doctor string `json:"doctor,omitempty"`
}

func (p ReviewPayload) Summary() string {
	return fmt.Sprintf("💬 Новый отзыв (%d/5) от %s\n%s", p.Rating, p.Name, p.Text)
}

// Summary renders the submission for relays.
func (s Submission) Summary() string {
	if sm, ok := s.Data.(Summarizer); ok {
		return sm.Summary()
	}
	return fmt.Sprintf("Новая заявка: %s", s.Kind)
}
