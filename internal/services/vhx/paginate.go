package vhx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"vhxdl/internal/services"
)

// PageSize is the number of items requested per listing page.
const PageSize = 100

type paginationInfo struct {
	Count *int `json:"count"`
}

// FetchAll retrieves every item of a paginated listing at path, reading the
// items from key on each page. Pages are requested in order until the
// accumulated item count reaches the server-declared total, so N items cost
// ceil(N/PageSize) requests (one when the listing is empty).
func FetchAll[T any](ctx context.Context, c *Client, path []string, key string) ([]T, error) {
	operation := "list " + strings.Join(path[min(2, len(path)):], "/")
	var items []T
	for page := 1; ; page++ {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(PageSize)},
		}
		body, err := c.get(ctx, operation, path, query)
		if err != nil {
			return nil, err
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, services.Wrap(services.ErrFetch, component, operation, "decode page", err)
		}
		rawItems, ok := envelope[key]
		if !ok {
			return nil, services.Wrap(services.ErrFetch, component, operation, fmt.Sprintf("page %d missing %q", page, key), nil)
		}
		var pageItems []T
		if err := json.Unmarshal(rawItems, &pageItems); err != nil {
			return nil, services.Wrap(services.ErrFetch, component, operation, fmt.Sprintf("decode %q on page %d", key, page), err)
		}
		var pagination paginationInfo
		if raw, ok := envelope["pagination"]; ok {
			if err := json.Unmarshal(raw, &pagination); err != nil {
				return nil, services.Wrap(services.ErrFetch, component, operation, "decode pagination", err)
			}
		}
		if pagination.Count == nil {
			return nil, services.Wrap(services.ErrFetch, component, operation, fmt.Sprintf("page %d missing pagination.count", page), nil)
		}

		items = append(items, pageItems...)
		if len(items) >= *pagination.Count {
			return items, nil
		}
		if len(pageItems) == 0 {
			return nil, services.Wrap(services.ErrFetch, component, operation,
				fmt.Sprintf("page %d empty with %d of %d items received", page, len(items), *pagination.Count), nil)
		}
	}
}
