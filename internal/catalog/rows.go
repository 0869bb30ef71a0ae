package catalog

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	wordsPerMinute     = 200
	excerptRunes       = 160
	defaultDoctorPhoto = "/images/doctors/placeholder.jpg"
)

// Raw rows mirror the backend JSON, optional columns as pointers.

type doctorRow struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Specialization *string `json:"specialization"`
	Position       *string `json:"position"`
	Experience     *int    `json:"experience"`
	PhotoURL       *string `json:"photo_url"`
	Image          *string `json:"image"`
	Bio            *string `json:"bio"`
	SortOrder      *int    `json:"sort_order"`
}

type categoryRow struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Slug      *string `json:"slug"`
	Icon      *string `json:"icon"`
	SortOrder *int    `json:"sort_order"`
}

type serviceRow struct {
	ID          string           `json:"id"`
	CategoryID  *string          `json:"category_id"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	PriceFrom   *bool            `json:"price_from"`
	Duration    *int             `json:"duration"`
}

type blogRow struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Content     *string    `json:"content"`
	Excerpt     *string    `json:"excerpt"`
	ReadTime    *int       `json:"read_time"`
	ImageURL    *string    `json:"image_url"`
	Author      *string    `json:"author"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   *time.Time `json:"created_at"`
}

type projectRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	BeforeImage *string `json:"before_image"`
	AfterImage  *string `json:"after_image"`
}

type promotionRow struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Badge       *string    `json:"badge"`
	ImageURL    *string    `json:"image_url"`
	ValidUntil  *time.Time `json:"valid_until"`
}

type promoCodeRow struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  *string         `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Description   *string         `json:"description"`
}

type itemRow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       decimal.Decimal  `json:"price"`
	OldPrice    *decimal.Decimal `json:"old_price"`
	ImageURL    *string          `json:"image_url"`
	InStock     *bool            `json:"in_stock"`
}

type faqRow struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Category  *string `json:"category"`
	SortOrder *int    `json:"sort_order"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func (r doctorRow) normalize() Doctor {
	return Doctor{
		ID:             r.ID,
		Name:           strings.TrimSpace(r.Name),
		Specialization: firstNonEmpty(str(r.Specialization), str(r.Position)),
		ExperienceYrs:  intOr(r.Experience, 0),
		PhotoURL:       firstNonEmpty(str(r.PhotoURL), str(r.Image), defaultDoctorPhoto),
		Bio:            str(r.Bio),
		SortOrder:      intOr(r.SortOrder, math.MaxInt32),
	}
}

func (r categoryRow) normalize() ServiceCategory {
	return ServiceCategory{
		ID:        r.ID,
		Name:      strings.TrimSpace(r.Name),
		Slug:      firstNonEmpty(str(r.Slug), r.ID),
		Icon:      str(r.Icon),
		SortOrder: intOr(r.SortOrder, math.MaxInt32),
	}
}

func (r serviceRow) normalize() Service {
	s := Service{
		ID:          r.ID,
		CategoryID:  str(r.CategoryID),
		Name:        strings.TrimSpace(r.Name),
		Description: str(r.Description),
		DurationMin: intOr(r.Duration, 30),
	}
	if r.Price != nil {
		s.Price = *r.Price
	}
	if r.PriceFrom != nil {
		s.PriceFrom = *r.PriceFrom
	}
	return s
}

func (r blogRow) normalize() BlogPost {
	content := str(r.Content)
	p := BlogPost{
		ID:       r.ID,
		Slug:     r.Slug,
		Title:    strings.TrimSpace(r.Title),
		Content:  content,
		Excerpt:  firstNonEmpty(str(r.Excerpt), Excerpt(content, excerptRunes)),
		ReadTime: intOr(r.ReadTime, 0),
		CoverURL: str(r.ImageURL),
		Author:   str(r.Author),
	}
	if p.ReadTime <= 0 {
		p.ReadTime = ReadTime(content)
	}
	switch {
	case r.PublishedAt != nil:
		p.PublishedAt = *r.PublishedAt
	case r.CreatedAt != nil:
		p.PublishedAt = *r.CreatedAt
	}
	return p
}

func (r projectRow) normalize() Project {
	return Project{
		ID:          r.ID,
		Title:       strings.TrimSpace(r.Title),
		Description: str(r.Description),
		Category:    str(r.Category),
		BeforeURL:   str(r.BeforeImage),
		AfterURL:    str(r.AfterImage),
	}
}

func (r promotionRow) normalize() Promotion {
	return Promotion{
		ID:          r.ID,
		Title:       strings.TrimSpace(r.Title),
		Description: str(r.Description),
		Badge:       str(r.Badge),
		ImageURL:    str(r.ImageURL),
		ValidUntil:  r.ValidUntil,
	}
}

func (r promoCodeRow) normalize() PromoCode {
	return PromoCode{
		ID:            r.ID,
		Code:          strings.TrimSpace(r.Code),
		DiscountType:  NormalizeDiscountType(str(r.DiscountType)),
		DiscountValue: r.DiscountValue,
		Description:   str(r.Description),
	}
}

func (r itemRow) normalize() MarketplaceItem {
	it := MarketplaceItem{
		ID:          r.ID,
		Name:        strings.TrimSpace(r.Name),
		Description: str(r.Description),
		Category:    str(r.Category),
		Price:       r.Price,
		ImageURL:    str(r.ImageURL),
		InStock:     true,
	}
	if r.OldPrice != nil {
		it.OldPrice = *r.OldPrice
	}
	if r.InStock != nil {
		it.InStock = *r.InStock
	}
	return it
}

func (r faqRow) normalize() FAQEntry {
	return FAQEntry{
		ID:        r.ID,
		Question:  strings.TrimSpace(r.Question),
		Answer:    strings.TrimSpace(r.Answer),
		Category:  str(r.Category),
		SortOrder: intOr(r.SortOrder, math.MaxInt32),
	}
}

// NormalizeDiscountType maps the backend's tag variants onto fixed/percent.
// Anything that is not clearly a percentage is treated as a fixed amount.
func NormalizeDiscountType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "percent", "percentage", "%", "pct":
		return DiscountPercent
	default:
		return DiscountFixed
	}
}

// ReadTime estimates minutes to read content, at least one.
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt trims content to at most n runes, cutting at a word boundary.
func Excerpt(content string, n int) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)[:n]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

func normalizeAll[R interface{ normalize() T }, T any](rows []R) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.normalize())
	}
	return out
}
