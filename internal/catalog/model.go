// Package catalog holds the typed, read-only projections of backend rows
// (doctors, services, content, promotions, shop items) and the boundary
// mappers that normalize raw rows once.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table names in the managed backend.
const (
	TableDoctors           = "doctors"
	TableServices          = "appointment_services"
	TableServiceCategories = "appointment_service_categories"
	TableBlogPosts         = "blog_posts"
	TableProjects          = "projects"
	TablePromotions        = "promotions"
	TablePromoCodes        = "promo_codes"
	TableMarketplaceItems  = "marketplace_items"
	TableFAQ               = "faq_entries"
)

// Discount types on promo codes.
const (
	DiscountFixed   = "fixed"
	DiscountPercent = "percent"
)

type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	ExperienceYrs  int    `json:"experience_years"`
	PhotoURL       string `json:"photo_url"`
	Bio            string `json:"bio"`
	SortOrder      int    `json:"sort_order"`
}

type ServiceCategory struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type Service struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	PriceFrom   bool            `json:"price_from"`
	DurationMin int             `json:"duration_minutes"`
}

type BlogPost struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Excerpt     string    `json:"excerpt"`
	ReadTime    int       `json:"read_time"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	BeforeURL   string `json:"before_url,omitempty"`
	AfterURL    string `json:"after_url,omitempty"`
}

type Promotion struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Badge       string     `json:"badge,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

type PromoCode struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Description   string          `json:"description,omitempty"`
}

type MarketplaceItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	OldPrice    decimal.Decimal `json:"old_price,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	InStock     bool            `json:"in_stock"`
}

type FAQEntry struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Category  string `json:"category,omitempty"`
	SortOrder int    `json:"sort_order"`
}
