package ctfd

import (
	"context"
	"fmt"
)

// pageFetcher fetches one page of a paginated listing.
type pageFetcher[T any] func(ctx context.Context, page int) (*Envelope[[]T], error)

// paginate walks a listing from page 1 following pagination.next until it is
// null. The final page is not assumed to be short.
func paginate[T any](ctx context.Context, endpoint string, fetch pageFetcher[T]) ([]T, error) {
	var out []T
	seen := make(map[int]struct{})

	for page := 1; ; {
		env, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		if env.Pagination == nil {
			return nil, protocolError("GET", endpoint, "missing pagination metadata on page %d", page)
		}
		seen[page] = struct{}{}
		out = append(out, env.Data...)

		next := env.Pagination.Next
		if next == nil {
			return out, nil
		}
		if _, loop := seen[*next]; loop {
			return nil, protocolError("GET", endpoint, "pagination loops back to page %d", *next)
		}
		page = *next
	}
}

// listAll paginates a GET listing endpoint that takes a page query parameter.
func listAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	return paginate(ctx, endpoint, func(ctx context.Context, page int) (*Envelope[[]T], error) {
		return doRequest[[]T](ctx, c, "GET", fmt.Sprintf("%s?page=%d", endpoint, page), nil)
	})
}
