package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Resource is CRUD access to one backend collection.
type Resource[T any] struct {
	c    *Client
	path string
}

// NewResource binds T to the collection at path.
func NewResource[T any](c *Client, path string) Resource[T] {
	return Resource[T]{c: c, path: "/" + strings.Trim(path, "/")}
}

func (r Resource[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.c.do(ctx, http.MethodGet, r.path, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodGet, r.item(id), nil, "", &out)
	return out, err
}

func (r Resource[T]) Create(ctx context.Context, v T) (T, error) {
	return r.send(ctx, http.MethodPost, r.path, v)
}

func (r Resource[T]) Update(ctx context.Context, id string, v T) (T, error) {
	return r.send(ctx, http.MethodPut, r.item(id), v)
}

func (r Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.item(id), nil, "", nil)
}

func (r Resource[T]) send(ctx context.Context, method, path string, v T) (T, error) {
	var out T
	body, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = r.c.do(ctx, method, path, bytes.NewReader(body), "application/json", &out)
	return out, err
}

func (r Resource[T]) item(id string) string {
	return r.path + "/" + strings.Trim(strings.TrimSpace(id), "/")
}
