package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/backend"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/validation"
)

// ProductsList proxies the paginated catalog with page, limit, category,
// featured and search filters.
func ProductsList(catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := parseProductQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := catalog.ListProducts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, page)
	}
}

func ProductsFeatured(catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := validators.NewQuery(r)
		limit := q.Int("limit", pagination.FeaturedLimit, 1, pagination.MaxLimit)
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := catalog.FeaturedProducts(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, products)
	}
}

func ProductDetail(catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "productId"))
		if id == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		product, err := catalog.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, product)
	}
}

func CategoriesList(catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := catalog.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, categories)
	}
}

func parseProductQuery(r *http.Request) (backend.ProductQuery, error) {
	q := validators.NewQuery(r)
	query := backend.ProductQuery{
		Page:     q.Int("page", 1, 1, 10000),
		Limit:    q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
		Category: q.String("category", 60),
		Featured: q.Bool("featured"),
		Search:   q.String("search", 120),
	}
	if err := q.Err(); err != nil {
		return backend.ProductQuery{}, err
	}
	if err := validation.Struct(query); err != nil {
		return backend.ProductQuery{}, err
	}
	return query, nil
}
