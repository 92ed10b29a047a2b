package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	pkgpagination "github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/types"
)

func (q ProductQuery) values() url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		values.Set("category", category)
	}
	if q.Featured != nil {
		values.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		values.Set("search", search)
	}
	return values
}

// ListProducts returns one page of the catalog.
func (c *Client) ListProducts(ctx context.Context, query ProductQuery) (types.Page[Product], error) {
	var products []Product
	pagination, err := c.do(ctx, call{
		op:     "products.list",
		method: http.MethodGet,
		path:   "/products",
		query:  query.values(),
	}, &products)
	if err != nil {
		return types.Page[Product]{}, err
	}
	if products == nil {
		products = []Product{}
	}
	meta := pkgpagination.Complete(pagination, query.Page, query.Limit, len(products))
	return types.Page[Product]{Items: products, Pagination: meta}, nil
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	id, err := requireID("product id", productID)
	if err != nil {
		return nil, err
	}
	var product Product
	if _, err := c.do(ctx, call{op: "products.get", method: http.MethodGet, path: "/products/" + id}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) FeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var products []Product
	if _, err := c.do(ctx, call{op: "products.featured", method: http.MethodGet, path: "/products/featured", query: query}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if _, err := c.do(ctx, call{op: "products.categories", method: http.MethodGet, path: "/products/categories"}, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

type productGetter interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// ProductCatalog resolves products for the cart, collapsing concurrent
// lookups of the same id into one backend call.
type ProductCatalog struct {
	products productGetter
	group    singleflight.Group
}

func NewProductCatalog(products productGetter) *ProductCatalog {
	return &ProductCatalog{products: products}
}

// Product returns the cart view of productID. Inactive products are rejected.
func (c *ProductCatalog) Product(ctx context.Context, productID string) (cart.Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.products.GetProduct(ctx, id)
	})
	if err != nil {
		return cart.Product{}, err
	}
	product := v.(*Product)
	if !product.IsActive {
		return cart.Product{}, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s is not available", id)
	}
	return product.CartProduct(), nil
}
