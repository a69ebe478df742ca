// Package service wraps the backend's REST resources in typed calls and
// keeps one session manager per portal visitor.
package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/pkg/apierror"
)

// Caller is the refresh-aware request surface the services need.
// *client.Coordinator implements it.
type Caller interface {
	Call(ctx context.Context, path string, opts client.RequestOptions, out any) error
}

func get(ctx context.Context, api Caller, path string, out any) error {
	return api.Call(ctx, path, client.RequestOptions{Method: http.MethodGet}, out)
}

func send(ctx context.Context, api Caller, method string, path string, body any, out any) error {
	return api.Call(ctx, path, client.RequestOptions{Method: method, Body: body}, out)
}

func itemPath(collection string, id int64, action ...string) string {
	p := fmt.Sprintf("/%s/%d/", collection, id)
	for _, a := range action {
		p += a + "/"
	}
	return p
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func requireID(id int64, what string) error {
	if id <= 0 {
		return apierror.New("BAD_REQUEST", what+" id is required", strconv.FormatInt(id, 10), http.StatusBadRequest)
	}
	return nil
}
