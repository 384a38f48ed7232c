package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// Resource is the CRUD surface shared by every backend collection
type Resource[T any] struct {
	c    *Client
	path string

	// skipLimit selects skip/limit paging instead of page/page_size
	skipLimit bool
}

func newResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

// Path returns the collection path relative to the API prefix
func (r *Resource[T]) Path() string {
	return r.path
}

func (r *Resource[T]) itemPath(id string, suffix ...string) string {
	p := r.path + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func (r *Resource[T]) listQuery(opts models.ListOptions) url.Values {
	q := url.Values{}
	pageSize := opts.PageSize
	if r.skipLimit {
		if pageSize > 0 {
			q.Set("limit", strconv.Itoa(pageSize))
			if opts.Page > 1 {
				q.Set("skip", strconv.Itoa((opts.Page-1)*pageSize))
			}
		}
	} else {
		if opts.Page > 0 {
			q.Set("page", strconv.Itoa(opts.Page))
		}
		if pageSize > 0 {
			q.Set("page_size", strconv.Itoa(pageSize))
		}
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	for k, v := range opts.Filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// List returns one page of the collection
func (r *Resource[T]) List(ctx context.Context, opts models.ListOptions) (*models.ListResponse[T], error) {
	var out models.ListResponse[T]
	if err := r.c.do(ctx, http.MethodGet, r.path+"/", r.listQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []T{}
	}
	return &out, nil
}

// Get fetches one item
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new item. body is any JSON-encodable create payload.
func (r *Resource[T]) Create(ctx context.Context, body interface{}) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodPost, r.path+"/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update patches an item with the given fields
func (r *Resource[T]) Update(ctx context.Context, id string, patch interface{}) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodPatch, r.itemPath(id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

// DuplicableResource adds server-side copying
type DuplicableResource[T any] struct {
	*Resource[T]
}

func newDuplicable[T any](c *Client, path string) *DuplicableResource[T] {
	return &DuplicableResource[T]{Resource: newResource[T](c, path)}
}

// Duplicate asks the backend to copy an item and returns the copy
func (r *DuplicableResource[T]) Duplicate(ctx context.Context, id string) (*T, error) {
	var out T
	if err := r.c.do(ctx, http.MethodPost, r.itemPath(id, "duplicate"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
