package secretstore

import (
	"context"
)

// PageObserver is notified after each page is fetched. It is used for
// metrics and debug logging.
type PageObserver func(store string, page int, entries int)

// Lister paginates a Client to completion.
type Lister struct {
	client   Client
	observer PageObserver
}

// ListerOption configures a Lister.
type ListerOption func(*Lister)

// WithPageObserver registers a callback invoked after every page.
func WithPageObserver(o PageObserver) ListerOption {
	return func(l *Lister) {
		l.observer = o
	}
}

// NewLister creates a Lister over client.
func NewLister(client Client, opts ...ListerOption) *Lister {
	l := &Lister{client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns every non-deleted entry matching filters, in store page order.
//
// Filters the client does not evaluate itself are applied here. Any page
// failure aborts the listing and no partial result is returned.
func (l *Lister) List(ctx context.Context, filters []Filter) ([]Entry, error) {
	var local []Filter
	for _, f := range filters {
		if !l.client.Supports(f.Key) {
			local = append(local, f)
		}
	}

	var (
		entries []Entry
		token   string
		seen    = make(map[string]struct{})
	)
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &ListingError{Store: l.client.Name(), Page: page, Err: err}
		}

		p, err := l.client.ListSecrets(ctx, filters, token)
		if err != nil {
			return nil, &ListingError{Store: l.client.Name(), Page: page, Err: err}
		}
		if l.observer != nil {
			l.observer(l.client.Name(), page, len(p.Entries))
		}

		for _, e := range p.Entries {
			if e.Deleted() {
				continue
			}
			if !MatchesAll(local, e) {
				continue
			}
			entries = append(entries, e)
		}

		if p.NextToken == "" {
			return entries, nil
		}
		if _, dup := seen[p.NextToken]; dup {
			return nil, &ListingError{Store: l.client.Name(), Page: page, Err: ErrRepeatedPageToken}
		}
		seen[p.NextToken] = struct{}{}
		token = p.NextToken
	}
}
