package services

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/desertthunder/tunemirror/internal/shared"
)

// Pager lazily walks a limit/offset list endpoint. It can be ranged over once.
type Pager[T any] struct {
	fetch    func(offset int) (*Page[T], error)
	pageSize int
	used     atomic.Bool
	pages    int
}

// Paginate returns a pager over endpoint fetching pageSize items per request.
func Paginate[T any](ctx context.Context, c *SpotifyClient, endpoint string, params url.Values, pageSize int) *Pager[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	fetch := func(offset int) (*Page[T], error) {
		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		return getJSON[Page[T]](ctx, c, http.MethodGet, endpoint, q, nil)
	}

	return &Pager[T]{fetch: fetch, pageSize: pageSize}
}

// All yields every item across pages. A failed page yields its error and ends the sequence.
func (p *Pager[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if !p.used.CompareAndSwap(false, true) {
			yield(zero, shared.ErrPagerConsumed)
			return
		}

		offset := 0
		for {
			page, err := p.fetch(offset)
			if err != nil {
				yield(zero, fmt.Errorf("page at offset %d: %w", offset, err))
				return
			}
			p.pages++

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if page.Next == nil || len(page.Items) == 0 {
				return
			}
			offset += p.pageSize
		}
	}
}

// Collect exhausts the pager. Nothing is returned unless every page succeeded.
func (p *Pager[T]) Collect() ([]T, error) {
	var items []T
	for item, err := range p.All() {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Pages returns how many pages have been fetched so far.
func (p *Pager[T]) Pages() int {
	return p.pages
}

