package nadlan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nadlan-export/internal/assert"
	"nadlan-export/internal/components/telemetry"
)

const (
	report_pages_fetch     = "pages.fetch"
	report_pages_malformed = "pages.malformed"
)

// DefaultPageDelay is the pause between consecutive page fetches.
const DefaultPageDelay = time.Second

type PagerOptions struct {
	// MaxPages caps the number of fetched pages, 0 means no cap.
	MaxPages int
	// Delay is waited before every fetch but the first.
	Delay time.Duration
	// SkipMalformed skips records that fail enrichment instead of failing the iteration.
	SkipMalformed bool
	Telemetry     telemetry.API
}

func DefaultPagerOptions() PagerOptions {
	return PagerOptions{Delay: DefaultPageDelay}
}

// DealIterator walks the pages of a deals query and yields enriched deals.
//
//	it := client.Deals(target, opts)
//	for it.Next(ctx) {
//		deal := it.Deal()
//	}
//	if err := it.Err(); err != nil { ... }
//
// An iterator is consumed once, after Next returns false it stays done.
type DealIterator struct {
	fetcher DealsFetcher
	query   DealsQuery
	opts    PagerOptions
	tel     telemetry.API

	page     int
	lastPage bool
	pending  []Record
	current  Deal
	skipped  int
	done     bool
	err      error
}

func NewDealIterator(fetcher DealsFetcher, query DealsQuery, opts PagerOptions) *DealIterator {
	assert.NotNil(fetcher, "fetcher")

	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	return &DealIterator{
		fetcher: fetcher,
		query:   query,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("nadlan_scraper", tel),
	}
}

// Deals paginates the deals of a city or neighborhood.
func (c *Client) Deals(target Target, opts PagerOptions) *DealIterator {
	query, err := target.Query()
	it := NewDealIterator(c, query, opts)
	if err != nil {
		it.fail(err)
	}
	return it
}

// DealsByObjectID paginates the deals of an object id searched at level, ex. a
// street or an address id.
func (c *Client) DealsByObjectID(objectID string, level SearchLevel, opts PagerOptions) *DealIterator {
	it := NewDealIterator(c, QueryByObjectID(objectID, level), opts)
	switch {
	case strings.TrimSpace(objectID) == "":
		it.fail(ErrNoTarget)
	case !level.Valid() || level == LevelGushParcel:
		it.fail(fmt.Errorf("nadlan: cannot search object ids at level %s", level))
	}
	return it
}

// DealsByGushParcel paginates the deals of a gush/parcel pair.
func (c *Client) DealsByGushParcel(gush, parcel int, opts PagerOptions) *DealIterator {
	return NewDealIterator(c, QueryByGushParcel(gush, parcel), opts)
}

func (it *DealIterator) fail(err error) {
	it.err = err
	it.done = true
	it.pending = nil
}

func (it *DealIterator) shouldFetchMore() bool {
	if it.lastPage {
		return false
	}
	if it.opts.MaxPages > 0 && it.page >= it.opts.MaxPages {
		return false
	}
	return true
}

func (it *DealIterator) fetchPage(ctx context.Context) error {
	if it.page > 0 && it.opts.Delay > 0 {
		timer := time.NewTimer(it.opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	it.tel.ReportDebug(report_pages_fetch, it.query.ObjectID, it.query.CurrentLavel.String(), it.page)
	res, err := it.fetcher.FetchDeals(ctx, it.query, it.page)
	if err != nil {
		return err
	}
	it.lastPage = res.IsLastPage
	it.pending = res.AllResults
	it.page++
	return nil
}

// Next advances to the next deal, fetching a new page when the current one is
// used up. It returns false when there are no more deals or an error occurred.
func (it *DealIterator) Next(ctx context.Context) bool {
	for !it.done {
		err := ctx.Err()
		if err != nil {
			it.fail(err)
			return false
		}

		if len(it.pending) > 0 {
			raw := it.pending[0]
			it.pending = it.pending[1:]

			deal, err := Enrich(raw)
			if err != nil {
				var malformed *MalformedRecordError
				if it.opts.SkipMalformed && errors.As(err, &malformed) {
					it.skipped++
					it.tel.ReportWarning(report_pages_malformed, err, it.page)
					continue
				}
				it.fail(fmt.Errorf("page %d: %w", it.page, err))
				return false
			}
			it.current = deal
			return true
		}

		if !it.shouldFetchMore() {
			it.done = true
			return false
		}
		err = it.fetchPage(ctx)
		if err != nil {
			it.fail(err)
			return false
		}
	}
	return false
}

// Deal returns the deal Next advanced to.
func (it *DealIterator) Deal() Deal {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *DealIterator) Err() error {
	return it.err
}

// Pages returns the number of pages fetched so far.
func (it *DealIterator) Pages() int {
	return it.page
}

// Skipped returns the number of malformed records that were skipped.
func (it *DealIterator) Skipped() int {
	return it.skipped
}
