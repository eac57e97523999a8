package dropout

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
	"github.com/ottkit/dropout/internal/request"
)

// websiteRequest performs a call against the content website through the
// session cookie jar. The jar is persisted afterwards regardless of outcome.
func (s *Session) websiteRequest(method, path string, form url.Values) ([]byte, error) {
	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequest(method, s.websiteURL+path, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequest(method, s.websiteURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating website request: %w", err)
	}

	s.logger.Debug().Msgf("Website %s %s", method, path)
	body, reqErr := s.website.MakeRequest(req)
	s.persistCookies()
	return body, reqErr
}

// apiURL assembles a request URL for either API generation. The legacy host
// wants the versioned site prefix, the current one does not.
func (s *Session) apiURL(path string, params url.Values, useTV bool) string {
	var b strings.Builder
	if useTV {
		b.WriteString(s.apiURLTV)
	} else {
		b.WriteString(s.apiURLCom)
		b.WriteString(s.apiPrefix)
	}
	b.WriteString(path)
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(params.Encode())
	}
	return b.String()
}

// apiRequest performs one authenticated API call and returns the decoded
// JSON, or nil on a transient remote failure. In debug mode the failure is
// escalated instead.
func (s *Session) apiRequest(method, path string, params url.Values, useTV bool) (*fastjson.Value, error) {
	reqURL := s.apiURL(path, params, useTV)
	s.logger.Debug().Msgf("API %s %s", method, reqURL)

	req, err := http.NewRequest(method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	body, err := s.api.MakeRequest(req)
	if err != nil {
		if httpErr, ok := request.AsHTTPError(err); ok {
			if s.debug {
				return nil, fmt.Errorf("api request to %s failed: %w", path, httpErr)
			}
			s.logger.Error().Msgf("API request to %s failed: %v", path, httpErr)
			return nil, nil
		}
		return nil, fmt.Errorf("api request to %s: %w", path, err)
	}

	if len(body) == 0 {
		// 204s come back empty, normalize to an empty object.
		return fastjson.MustParse("{}"), nil
	}

	data, err := parseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decoding api response from %s: %w", path, err)
	}
	return data, nil
}

// apiRequestPages collects every page of a paginated endpoint, following
// whichever pagination dialect the backend speaks: hypermedia next-links on
// the current API, count/page/per_page counters on the legacy one.
func (s *Session) apiRequestPages(path string, params url.Values, useTV bool) ([]*fastjson.Value, error) {
	nextURL := s.apiURL(path, params, useTV)

	var items []*fastjson.Value
	for nextURL != "" {
		s.logger.Debug().Msgf("API GET %s (paging)", nextURL)
		req, err := http.NewRequest(http.MethodGet, nextURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating api request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.token)

		body, err := s.api.MakeRequest(req)
		if err != nil {
			if httpErr, ok := request.AsHTTPError(err); ok {
				if s.debug {
					return nil, fmt.Errorf("api request to %s failed: %w", path, httpErr)
				}
				s.logger.Error().Msgf("API request to %s failed: %v", path, httpErr)
				break
			}
			return nil, fmt.Errorf("api request to %s: %w", path, err)
		}

		data, err := parseJSON(body)
		if err != nil {
			return nil, fmt.Errorf("decoding api response from %s: %w", path, err)
		}

		if useTV {
			items = append(items, data.GetArray("_embedded", "items")...)
			nextURL = jsonString(data, "_links", "next", "href")
		} else {
			items = append(items, data.GetArray("items")...)
			nextURL = nextCounterPage(data.Get("pagination"))
		}
	}

	return items, nil
}

// nextCounterPage computes the next page URL for the counter dialect, empty
// when the counters report exhaustion.
func nextCounterPage(pagination *fastjson.Value) string {
	if pagination == nil {
		return ""
	}
	count := pagination.GetInt64("count")
	page := pagination.GetInt64("page")
	perPage := pagination.GetInt64("per_page")
	if count <= page*perPage {
		return ""
	}
	template := jsonString(pagination, "template_url")
	next := strings.ReplaceAll(template, "{page}", strconv.FormatInt(page+1, 10))
	return strings.ReplaceAll(next, "{per_page}", strconv.FormatInt(perPage, 10))
}

// parseComPage normalizes one legacy-API page.
func (s *Session) parseComPage(data *fastjson.Value, currentPage int, itemsKey string) PaginatedMedia {
	if data == nil {
		return PaginatedMedia{Items: []Media{}, Page: currentPage}
	}
	pagination := data.Get("pagination")
	if pagination == nil {
		return PaginatedMedia{Items: s.parseMedia(data.GetArray(itemsKey), parseOpts{}), Page: currentPage}
	}
	page := int(pagination.GetInt64("page"))
	var nextPage *int
	if pagination.GetInt64("count") >= pagination.GetInt64("page")*pagination.GetInt64("per_page") {
		next := page + 1
		nextPage = &next
	}
	return PaginatedMedia{
		Items:    s.parseMedia(data.GetArray(itemsKey), parseOpts{}),
		Page:     page,
		NextPage: nextPage,
	}
}

// parseTVPage normalizes one current-API page.
func (s *Session) parseTVPage(data *fastjson.Value, currentPage int, isMyList bool) PaginatedMedia {
	if data == nil {
		return PaginatedMedia{Items: []Media{}, Page: currentPage}
	}
	var nextPage *int
	if jsonString(data, "_links", "next", "href") != "" {
		next := currentPage + 1
		nextPage = &next
	}
	return PaginatedMedia{
		Items:    s.parseMedia(data.GetArray("_embedded", "items"), parseOpts{isMyList: isMyList}),
		Page:     currentPage,
		NextPage: nextPage,
	}
}
