package dropout

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/valyala/fastjson"
)

// ensureMyList populates the session's watchlist-id cache with an id-only
// full pagination of the watchlist. Built once per session; only session
// recreation invalidates it.
func (s *Session) ensureMyList() {
	if s.myList != nil {
		return
	}
	// Set before fetching so a movie inside the watchlist cannot recurse
	// back into the build.
	s.myList = map[int64]struct{}{}

	path := fmt.Sprintf("/customers/%d/watchlist", s.userID)
	items, err := s.apiRequestPages(path, url.Values{
		"product":          {strconv.Itoa(productID)},
		"collection":       {s.apiURLTV + path},
		"include_products": {"true"},
	}, true)
	if err != nil {
		s.logger.Error().Msgf("Could not build watchlist cache: %v", err)
		return
	}

	for _, m := range s.parseMedia(items, parseOpts{isMyList: true, fast: true}) {
		s.myList[m.EntityID()] = struct{}{}
	}
}

func pageParams(page int) url.Values {
	return url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(defaultPerPage)},
	}
}

// getFromCollection fetches one page of a collection's items off the legacy
// API.
func (s *Session) getFromCollection(page int, collection int64) (PaginatedMedia, error) {
	s.ensureMyList()
	params := pageParams(page)
	params.Set("include_events", "1")
	params.Set("include_products_for", "web")
	data, err := s.apiRequest(http.MethodGet, fmt.Sprintf("/collections/%d/items", collection), params, false)
	if err != nil {
		return PaginatedMedia{}, err
	}
	return s.parseComPage(data, page, "items"), nil
}

func (s *Session) GetNewReleases(page int) (PaginatedMedia, error) {
	return s.getFromCollection(page, newReleasesCollectionID)
}

func (s *Session) GetTrending(page int) (PaginatedMedia, error) {
	return s.getFromCollection(page, trendingCollectionID)
}

func (s *Session) GetAllSeries(page int) (PaginatedMedia, error) {
	return s.getFromCollection(page, allSeriesCollectionID)
}

func (s *Session) GetCollectionItems(page int, collection int64) (PaginatedMedia, error) {
	return s.getFromCollection(page, collection)
}

// GetMyList fetches one page of the user's watchlist.
func (s *Session) GetMyList(page int) (PaginatedMedia, error) {
	path := fmt.Sprintf("/customers/%d/watchlist", s.userID)
	params := pageParams(page)
	params.Set("product", strconv.Itoa(productID))
	params.Set("collection", s.apiURLTV+path)
	params.Set("include_products", "true")
	data, err := s.apiRequest(http.MethodGet, path, params, true)
	if err != nil {
		return PaginatedMedia{}, err
	}
	return s.parseTVPage(data, page, true), nil
}

func (s *Session) GetFeatured(page int) (PaginatedMedia, error) {
	s.ensureMyList()
	params := pageParams(page)
	params.Set("site_id", strconv.Itoa(siteID))
	data, err := s.apiRequest(http.MethodGet, "/products/featured_items", params, true)
	if err != nil {
		return PaginatedMedia{}, err
	}
	return s.parseTVPage(data, page, false), nil
}

func (s *Session) GetBrowse(page int) (PaginatedMedia, error) {
	s.ensureMyList()
	params := pageParams(page)
	params.Set("include_events", "1")
	params.Set("include_products", "true")
	params.Set("product", fmt.Sprintf("%s/products/%d", s.apiURLTV, productID))
	params.Set("site_id", strconv.Itoa(siteID))
	data, err := s.apiRequest(http.MethodGet, "/browse", params, true)
	if err != nil {
		return PaginatedMedia{}, err
	}
	return s.parseTVPage(data, page, false), nil
}

// Search queries the catalog across media types.
func (s *Session) Search(query string, page int) (PaginatedMedia, error) {
	s.ensureMyList()
	params := pageParams(page)
	params.Set("q", query)
	params.Set("type", "video,collection,live_event,product")
	data, err := s.apiRequest(http.MethodGet, "/search", params, false)
	if err != nil {
		return PaginatedMedia{}, err
	}
	return s.parseComPage(data, page, "results"), nil
}

// getCollectionDetail fetches a collection by id and checks it is one of
// the expected container types.
func (s *Session) getCollectionDetail(collection int64, types ...string) (*fastjson.Value, error) {
	data, err := s.apiRequest(http.MethodGet, fmt.Sprintf("/collections/%d", collection), nil, false)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("could not get collection %d", collection)
	}
	typ := jsonString(data, "type")
	for _, allowed := range types {
		if typ == allowed {
			return data, nil
		}
	}
	return nil, fmt.Errorf("collection %d has unexpected type %q (wanted %v)", collection, typ, types)
}

func (s *Session) GetCollection(collection int64) (*Collection, error) {
	data, err := s.getCollectionDetail(collection, "collection", "category")
	if err != nil {
		return nil, err
	}
	return s.parseCollection(data, false, true)
}

func (s *Session) GetSeries(series int64) (*Series, error) {
	data, err := s.getCollectionDetail(series, "series")
	if err != nil {
		return nil, err
	}
	return s.parseSeries(data, false)
}

func (s *Session) GetSeason(season int64) (*Series, error) {
	data, err := s.getCollectionDetail(season, "season")
	if err != nil {
		return nil, err
	}
	return s.parseSeries(data, false)
}

// AddToList puts a media item on the user's watchlist.
func (s *Session) AddToList(typ string, id int64) bool {
	return s.editList(http.MethodPut, typ, id)
}

// RemoveFromList takes a media item off the user's watchlist.
func (s *Session) RemoveFromList(typ string, id int64) bool {
	return s.editList(http.MethodDelete, typ, id)
}

func (s *Session) editList(method, typ string, id int64) bool {
	params := url.Values{}
	if typ == "movie" {
		// Movies are addressed by their backing collection id.
		params.Set("collection", strconv.FormatInt(id, 10))
	} else {
		if typ == "series" {
			typ = "collection"
		}
		params.Set(typ, fmt.Sprintf("%s/%ss/%d", s.apiURLTV, typ, id))
	}
	data, err := s.apiRequest(method, "/me/watchlist", params, true)
	if err != nil {
		s.logger.Error().Msgf("Watchlist %s for %s %d failed: %v", method, typ, id, err)
		return false
	}
	return data != nil
}
