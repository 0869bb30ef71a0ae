package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/internal/querycache"
)

// ErrNotFound is returned for single-row lookups with no match.
var ErrNotFound = errors.New("catalog: not found")

// Source reads rows from the managed backend.
type Source interface {
	Select(ctx context.Context, table string, q *backend.Query, out any) error
}

// Repository serves normalized catalog data through the query cache.
type Repository struct {
	source Source
	loader *querycache.Loader
}

// NewRepository creates a catalog repository.
func NewRepository(source Source, loader *querycache.Loader) *Repository {
	if loader == nil {
		loader = querycache.NewLoader(nil, 0, nil)
	}
	return &Repository{source: source, loader: loader}
}

// Invalidate drops every cached query for table.
func (r *Repository) Invalidate(ctx context.Context, table string) error {
	return r.loader.InvalidatePrefix(ctx, table+"?")
}

func selectRows[R interface{ normalize() T }, T any](ctx context.Context, r *Repository, table string, q *backend.Query) querycache.Result[[]T] {
	return querycache.Load(ctx, r.loader, q.Key(table), func(ctx context.Context) ([]T, error) {
		var rows []R
		if err := r.source.Select(ctx, table, q, &rows); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		return normalizeAll[R, T](rows), nil
	})
}

// Doctors lists active doctors in display order.
func (r *Repository) Doctors(ctx context.Context) querycache.Result[[]Doctor] {
	res := selectRows[doctorRow, Doctor](ctx, r, TableDoctors,
		backend.NewQuery().Eq("is_active", true).Order("sort_order", true))
	sort.SliceStable(res.Data, func(i, j int) bool { return res.Data[i].SortOrder < res.Data[j].SortOrder })
	return res
}

// ServiceCategories lists bookable service categories.
func (r *Repository) ServiceCategories(ctx context.Context) querycache.Result[[]ServiceCategory] {
	return selectRows[categoryRow, ServiceCategory](ctx, r, TableServiceCategories,
		backend.NewQuery().Order("sort_order", true))
}

// Services lists active services, narrowed to categoryID when non-empty.
func (r *Repository) Services(ctx context.Context, categoryID string) querycache.Result[[]Service] {
	q := backend.NewQuery().Eq("is_active", true)
	if categoryID != "" {
		q.Eq("category_id", categoryID)
	}
	return selectRows[serviceRow, Service](ctx, r, TableServices, q.Order("name", true))
}

// Service returns one active service.
func (r *Repository) Service(ctx context.Context, id string) (Service, error) {
	res := r.Services(ctx, "")
	if res.Err != nil {
		return Service{}, res.Err
	}
	for _, s := range res.Data {
		if s.ID == id {
			return s, nil
		}
	}
	return Service{}, ErrNotFound
}

// BlogPosts lists published posts, newest first.
func (r *Repository) BlogPosts(ctx context.Context, limit int) querycache.Result[[]BlogPost] {
	q := backend.NewQuery().Eq("is_published", true).Order("published_at", false)
	if limit > 0 {
		q.Limit(limit)
	}
	return selectRows[blogRow, BlogPost](ctx, r, TableBlogPosts, q)
}

// BlogPost returns a published post by slug.
func (r *Repository) BlogPost(ctx context.Context, slug string) (BlogPost, error) {
	res := selectRows[blogRow, BlogPost](ctx, r, TableBlogPosts,
		backend.NewQuery().Eq("slug", slug).Eq("is_published", true).Limit(1))
	if res.Err != nil {
		return BlogPost{}, res.Err
	}
	if len(res.Data) == 0 {
		return BlogPost{}, ErrNotFound
	}
	return res.Data[0], nil
}

// Projects lists portfolio cases.
func (r *Repository) Projects(ctx context.Context) querycache.Result[[]Project] {
	return selectRows[projectRow, Project](ctx, r, TableProjects,
		backend.NewQuery().Order("created_at", false))
}

// Promotions lists active promotions.
func (r *Repository) Promotions(ctx context.Context) querycache.Result[[]Promotion] {
	return selectRows[promotionRow, Promotion](ctx, r, TablePromotions,
		backend.NewQuery().Eq("is_active", true).Order("created_at", false))
}

// PromoCodes lists active promo codes.
func (r *Repository) PromoCodes(ctx context.Context) querycache.Result[[]PromoCode] {
	return selectRows[promoCodeRow, PromoCode](ctx, r, TablePromoCodes,
		backend.NewQuery().Eq("is_active", true))
}

// MarketplaceItems lists shop items.
func (r *Repository) MarketplaceItems(ctx context.Context) querycache.Result[[]MarketplaceItem] {
	return selectRows[itemRow, MarketplaceItem](ctx, r, TableMarketplaceItems,
		backend.NewQuery().Eq("is_active", true).Order("sort_order", true))
}

// MarketplaceItem returns one shop item.
func (r *Repository) MarketplaceItem(ctx context.Context, id string) (MarketplaceItem, error) {
	res := r.MarketplaceItems(ctx)
	if res.Err != nil {
		return MarketplaceItem{}, res.Err
	}
	for _, it := range res.Data {
		if it.ID == id {
			return it, nil
		}
	}
	return MarketplaceItem{}, ErrNotFound
}

// FAQ lists FAQ entries, optionally for one category.
func (r *Repository) FAQ(ctx context.Context, category string) querycache.Result[[]FAQEntry] {
	q := backend.NewQuery()
	if category = strings.TrimSpace(category); category != "" {
		q.Eq("category", category)
	}
	return selectRows[faqRow, FAQEntry](ctx, r, TableFAQ, q.Order("sort_order", true))
}
