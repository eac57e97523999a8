package dropout

import "errors"

var (
	// ErrScrape means an expected token or field was missing from scraped
	// HTML or inline script content. Always fatal: it signals the website
	// changed underneath us.
	ErrScrape = errors.New("unexpected page structure")

	// ErrSkipItem marks an item the batch parser should drop, such as a
	// reserved pseudo-category slug.
	ErrSkipItem = errors.New("skipping item")

	// ErrNotPlayable means the identity cannot resolve to a stream.
	ErrNotPlayable = errors.New("not playable")
)
