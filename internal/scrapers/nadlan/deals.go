package nadlan

import (
	"context"
	"fmt"
	"time"

	"nadlan-export/internal/components/retry"
)

const pathDeals = "/Main/GetAssestAndDeals"

// PageResponse is one page of deals, fields other than these are ignored.
type PageResponse struct {
	AllResults []Record `json:"AllResults"`
	IsLastPage bool     `json:"IsLastPage"`
}

// DealsFetcher fetches a single page of deals, `page` is 0-based.
type DealsFetcher interface {
	FetchDeals(ctx context.Context, query DealsQuery, page int) (PageResponse, error)
}

// FetchDeals fetches one page of deals matching query, retrying any failure
// according to the client's retry policy.
func (c *Client) FetchDeals(ctx context.Context, query DealsQuery, page int) (PageResponse, error) {
	query = query.WithPage(page)

	res, err := retry.Do(
		ctx,
		c.retry,
		func(ctx context.Context) (PageResponse, error) {
			var out PageResponse
			err := c.postJSON(ctx, pathDeals, query, &out)
			return out, err
		},
		func(attempt int, err error, wait time.Duration) {
			c.tel.ReportWarning(
				report_client_fetch_deals,
				fmt.Errorf("attempt %d: %w", attempt, err),
				query.PageNo,
				wait.String(),
			)
		},
	)
	if err != nil {
		if ctx.Err() == nil {
			c.tel.ReportBroken(report_client_fetch_deals, err, query.ObjectID, query.PageNo)
		}
		return PageResponse{}, fmt.Errorf("fetch deals page %d: %w", query.PageNo, err)
	}
	return res, nil
}
