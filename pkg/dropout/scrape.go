package dropout

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// The website inlines its configuration into script tags; these patterns
// pull the handful of fields the client needs out of them.
var (
	tokenFinder        = regexp.MustCompile(`(?s)window\.VHX\.config\s*=\s*\{.*token:\s*"([^"]*)",`)
	userFinder         = regexp.MustCompile(`_current_user":\{"id":([^,]+),"`)
	embedFinder        = regexp.MustCompile(`(?s)window\.VHX\.config\s*=\s*\{.*embed_url:\s*"([^"]*)",`)
	playerConfigFinder = regexp.MustCompile(`(?s)window\.OTTData\s*=\s*(\{.*\})\s*</script>`)
	embedIDFinder      = regexp.MustCompile(`https://embed\.vhx\.tv/videos/(\d+)\?`)
	collectionIDFinder = regexp.MustCompile(`https://api\.vhx\.tv/collections/(\d+)/items`)
)

// scrapeTokenAndUser extracts the bearer token and current-user id from the
// home page HTML.
func scrapeTokenAndUser(body []byte) (string, int64, error) {
	tokenMatch := tokenFinder.FindSubmatch(body)
	if tokenMatch == nil {
		return "", 0, fmt.Errorf("%w: api token not found on home page", ErrScrape)
	}
	userMatch := userFinder.FindSubmatch(body)
	if userMatch == nil {
		return "", 0, fmt.Errorf("%w: current user not found on home page", ErrScrape)
	}
	userID, err := strconv.ParseInt(string(userMatch[1]), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: bogus current user id %q", ErrScrape, userMatch[1])
	}
	return string(tokenMatch[1]), userID, nil
}

// loginCSRFToken pulls the authenticity token out of the login form.
func (s *Session) loginCSRFToken() (string, error) {
	body, err := s.websiteRequest("GET", "/login", nil)
	if err != nil {
		return "", fmt.Errorf("fetching login page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing login page: %w", err)
	}

	form := doc.Find("#login-form-password")
	if form.Length() == 0 {
		return "", fmt.Errorf("%w: login form not found", ErrScrape)
	}
	token, ok := form.Find(`[name="authenticity_token"]`).Attr("value")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: authenticity token not found in login form", ErrScrape)
	}
	return token, nil
}

// metaCSRFToken pulls the csrf-token meta tag off the home page, used for
// logout.
func (s *Session) metaCSRFToken() (string, error) {
	body, err := s.websiteRequest("GET", "/", nil)
	if err != nil {
		return "", fmt.Errorf("fetching home page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing home page: %w", err)
	}

	token, ok := doc.Find(`meta[name="csrf-token"]`).Attr("content")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: csrf-token meta tag not found", ErrScrape)
	}
	return token, nil
}
