package dropout

import (
	"fmt"
	"strconv"

	"github.com/valyala/fastjson"
)

// Home-page pseudo-categories that look like collections but are not
// addressable ones.
var reservedSlugs = map[string]struct{}{
	"featured":          {},
	"continue-watching": {},
	"my-list":           {},
	"new-releases":      {},
	"trending":          {},
	"all-series":        {},
}

type parseOpts struct {
	// isMyList forces the in-list annotation, used when parsing the
	// watchlist itself.
	isMyList bool
	// fast skips the batched play-state query, for id-only passes.
	fast bool
}

// parseMedia maps a heterogeneous list of raw items to typed media,
// best-effort: a bad item is logged and skipped, never aborts the batch.
// Afterwards any released videos still missing play state get it resolved in
// one batched query.
func (s *Session) parseMedia(items []*fastjson.Value, opts parseOpts) []Media {
	out := make([]Media, 0, len(items))
	var needState []int

	for _, item := range items {
		media, needPlayState, err := s.parseMedium(item, opts.isMyList)
		if err != nil {
			s.logger.Warn().Msgf("Could not parse item: %v", err)
			continue
		}
		if needPlayState {
			needState = append(needState, len(out))
		}
		out = append(out, media)
	}

	if len(needState) > 0 && !opts.fast {
		lookup := make(map[int64]int, len(needState))
		ids := make([]int64, 0, len(needState))
		for _, i := range needState {
			lookup[out[i].EntityID()] = i
			ids = append(ids, out[i].EntityID())
		}
		for _, entry := range s.fetchPlayStates(ids) {
			i, ok := lookup[entry.GetInt64("video_id")]
			if !ok {
				s.logger.Warn().Msgf("Play state for unknown video %d", entry.GetInt64("video_id"))
				continue
			}
			rv := releasedVideo(out[i])
			rv.PlayState = mergePlayState(rv.PlayState, parsePlayState(entry))
		}
	}

	return out
}

// parseMedium maps one raw item to exactly one media variant. Items wrapped
// in an entity envelope are the detailed "full" shape, bare ones the compact
// "embedded" shape. The bool reports whether the item still needs play state
// resolved.
func (s *Session) parseMedium(item *fastjson.Value, isMyList bool) (Media, bool, error) {
	embedded := true
	if wrapped := item.Get("entity"); wrapped != nil {
		item = wrapped
		embedded = false
	}

	var media Media
	var needPlayState bool
	var err error

	switch typ := jsonString(item, "type"); typ {
	case "video":
		media, err = s.parseVideo(item, embedded)
		if err != nil {
			return nil, false, err
		}
		if ps := item.Get("_embedded", "play_state"); ps != nil {
			if rv := releasedVideo(media); rv != nil {
				rv.PlayState = mergePlayState(rv.PlayState, parsePlayState(ps))
			}
		} else {
			needPlayState = releasedVideo(media) != nil
		}
	case "movie":
		media, err = s.parseMovie(item, embedded)
		needPlayState = true
	case "season":
		media, err = s.parseSeason(item, embedded)
	case "series":
		media, err = s.parseSeries(item, embedded)
	case "":
		if t := item.Get("type"); t != nil && t.Type() != fastjson.TypeNull {
			return nil, false, fmt.Errorf("empty media type")
		}
		media, err = s.parseCollection(item, embedded, false)
	default:
		return nil, false, fmt.Errorf("unknown media type %q", typ)
	}
	if err != nil {
		return nil, false, err
	}

	if isMyList {
		media.setInList(true)
	} else if s.myList != nil {
		_, in := s.myList[media.EntityID()]
		media.setInList(in)
	}
	return media, needPlayState, nil
}

// parseVideo builds either video variant. No metadata block means the video
// is unreleased and only carries a trailer.
func (s *Session) parseVideo(item *fastjson.Value, embedded bool) (Media, error) {
	id := item.GetInt64("id")
	createdAt, err := parseTimestamp(jsonString(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("video %d: bad created_at: %w", id, err)
	}
	updatedAt, err := parseTimestamp(jsonString(item, "updated_at"))
	if err != nil {
		return nil, fmt.Errorf("video %d: bad updated_at: %w", id, err)
	}

	if !item.Exists("metadata") {
		return &UnreleasedVideo{
			entity:           entity{ID: id},
			Title:            jsonString(item, "title"),
			TrailerSlug:      jsonString(item, "url"),
			ShortDescription: jsonString(item, "short_description"),
			Description:      jsonString(item, "description"),
			DurationS:        item.GetInt64("duration", "seconds"),
			Thumbnail:        jsonString(item, "thumbnail", "source"),
			CreatedAt:        createdAt,
			UpdatedAt:        updatedAt,
		}, nil
	}

	metadata := item.Get("metadata")

	var series *VideoSeries
	if !embedded {
		if name := jsonString(metadata, "series", "name"); name != "" {
			series = &VideoSeries{
				Name: name,
				ID:   jsonNumber(metadata, "series", "id"),
			}
		}
	} else if metadata.Exists("series_name") && metadata.Exists("series_id") {
		series = &VideoSeries{
			Name: jsonString(metadata, "series_name"),
			ID:   jsonNumber(metadata, "series_id"),
		}
	}

	var season *VideoSeason
	if !embedded {
		if name := jsonString(metadata, "season", "name"); name != "" {
			season = &VideoSeason{
				Name:          name,
				Number:        jsonNumber(metadata, "season", "number"),
				EpisodeNumber: jsonNumber(metadata, "season", "episode_number"),
			}
		}
	} else if metadata.Exists("season_name") && metadata.Exists("season_number") {
		season = &VideoSeason{
			Name:          jsonString(metadata, "season_name"),
			Number:        jsonNumber(metadata, "season_number"),
			EpisodeNumber: jsonNumber(metadata, "episode_number"),
		}
	}

	rawDates := metadata.GetArray("release_dates")
	if embedded {
		rawDates = item.GetArray("release_dates")
	}
	var releaseDates []VideoReleaseDate
	for _, rd := range rawDates {
		date, err := parseReleaseDate(jsonString(rd, "date"))
		if err != nil {
			return nil, fmt.Errorf("video %d: bad release date: %w", id, err)
		}
		releaseDates = append(releaseDates, VideoReleaseDate{
			Date:     date,
			Location: jsonString(rd, "location"),
		})
	}

	thumbnail := jsonString(item, "thumbnails", "16_9", "source")
	pageURL := jsonString(item, "page_url")
	slug := jsonString(item, "slug")
	tags := jsonStrings(metadata, "tags")
	if embedded {
		thumbnail = jsonString(item, "thumbnail", "source")
		pageURL = linkString(item, "_links", "video_page")
		slug = jsonString(item, "url")
		tags = jsonStrings(item, "tags")
	}
	if tags == nil {
		tags = []string{}
	}

	return &ReleasedVideo{
		entity:           entity{ID: id},
		CollectionID:     item.GetInt64("canonical_collection_id"),
		Title:            jsonString(item, "title"),
		Slug:             slug,
		ShortDescription: jsonString(item, "short_description"),
		Description:      jsonString(item, "description"),
		URL:              pageURL,
		DurationS:        item.GetInt64("duration", "seconds"),
		Series:           series,
		Season:           season,
		Thumbnail:        thumbnail,
		Tags:             tags,
		ReleaseDates:     releaseDates,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		PlayState:        s.store.GetPlayState(id),
	}, nil
}

// parseMovie resolves a movie entry to the video backing it: page 1 of the
// canonical collection, smallest duration wins, first match on ties.
func (s *Session) parseMovie(item *fastjson.Value, embedded bool) (*Movie, error) {
	id := item.GetInt64("id")
	trailer := trailerString(item, "trailer_video_id")
	if embedded {
		trailer = trailerString(item, "trailer_url")
	}

	page, err := s.getFromCollection(1, id)
	if err != nil {
		return nil, fmt.Errorf("movie %d: %w", id, err)
	}

	var best *ReleasedVideo
	candidates := 0
	for _, m := range page.Items {
		rv := releasedVideo(m)
		if rv == nil {
			continue
		}
		candidates++
		if best == nil || rv.DurationS < best.DurationS {
			best = rv
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no released video in movie collection %d", ErrNotPlayable, id)
	}
	if candidates > 1 {
		s.logger.Warn().Msgf("Movie collection %d has %d playable candidates, using video %d", id, candidates, best.ID)
	}

	return &Movie{
		ReleasedVideo: *best,
		Assets:        s.assetsFromItem(item, embedded),
		TrailerURL:    trailer,
	}, nil
}

func (s *Session) parseSeason(item *fastjson.Value, embedded bool) (*Season, error) {
	id := item.GetInt64("id")
	createdAt, err := parseTimestamp(jsonString(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("season %d: bad created_at: %w", id, err)
	}
	updatedAt, err := parseTimestamp(jsonString(item, "updated_at"))
	if err != nil {
		return nil, fmt.Errorf("season %d: bad updated_at: %w", id, err)
	}

	return &Season{
		entity:        entity{ID: id},
		Title:         jsonString(item, "title"),
		Slug:          jsonString(item, "slug"),
		SeasonNumber:  item.GetInt64("season_number"),
		EpisodesCount: item.GetInt64("episodes_count"),
		TrailerURL:    trailerString(item, "trailer_video_id"),
		Thumbnail:     jsonString(item, "thumbnails", "16_9", "source"),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func (s *Session) parseSeries(item *fastjson.Value, embedded bool) (*Series, error) {
	id := item.GetInt64("id")
	createdAt, err := parseTimestamp(jsonString(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("series %d: bad created_at: %w", id, err)
	}
	updatedAt, err := parseTimestamp(jsonString(item, "updated_at"))
	if err != nil {
		return nil, fmt.Errorf("series %d: bad updated_at: %w", id, err)
	}

	title := jsonString(item, "title")
	trailer := trailerString(item, "trailer_video_id")
	collectionPage := ""
	if embedded {
		title = jsonString(item, "name")
		trailer = trailerString(item, "trailer_url")
		collectionPage = linkString(item, "_links", "collection_page")
	}

	return &Series{
		entity:           entity{ID: id},
		CollectionPage:   collectionPage,
		Title:            title,
		Slug:             jsonString(item, "slug"),
		ShortDescription: jsonString(item, "short_description"),
		Description:      jsonString(item, "description"),
		Seasons:          item.GetInt64("seasons_count"),
		TrailerURL:       trailer,
		Assets:           s.assetsFromItem(item, embedded),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// parseCollection handles items with no type discriminator. Reserved
// pseudo-category slugs are rejected; a missing id is recovered from the
// items link.
func (s *Session) parseCollection(item *fastjson.Value, embedded, extended bool) (*Collection, error) {
	slug := jsonString(item, "slug")
	if _, reserved := reservedSlugs[slug]; reserved {
		return nil, fmt.Errorf("%w: reserved category %q", ErrSkipItem, slug)
	}

	id := item.GetInt64("id")
	if !item.Exists("id") {
		match := collectionIDFinder.FindStringSubmatch(linkString(item, "_links", "items"))
		if match == nil {
			return nil, fmt.Errorf("could not find id for collection %q", slug)
		}
		id, _ = strconv.ParseInt(match[1], 10, 64)
	}

	collection := &Collection{
		entity:     entity{ID: id},
		Slug:       slug,
		Name:       jsonString(item, "name"),
		ItemsCount: item.GetInt64("items_count"),
		Thumbnail:  jsonString(item, "thumbnail", "source"),
	}
	if !extended {
		return collection, nil
	}

	createdAt, err := parseTimestamp(jsonString(item, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("collection %d: bad created_at: %w", id, err)
	}
	updatedAt, err := parseTimestamp(jsonString(item, "updated_at"))
	if err != nil {
		return nil, fmt.Errorf("collection %d: bad updated_at: %w", id, err)
	}

	assets := s.assetsFromItem(item, embedded)
	collection.Name = jsonString(item, "title")
	collection.Thumbnail = ""
	collection.Assets = &assets
	collection.ShortDescription = jsonString(item, "short_description")
	collection.Description = jsonString(item, "description")
	collection.CreatedAt = createdAt
	collection.UpdatedAt = updatedAt
	return collection, nil
}

// assetsFromItem maps the shape-dependent artwork blocks to one Assets set.
func (s *Session) assetsFromItem(item *fastjson.Value, embedded bool) Assets {
	if embedded {
		adds := item.Get("additional_images")
		background := jsonString(adds, "aspect_ratio_16_9_background", "source")
		return Assets{
			Icon:      jsonString(adds, "aspect_ratio_1_1", "source"),
			Poster:    jsonString(adds, "aspect_ratio_2_3", "source"),
			Fanart:    background,
			Landscape: background,
			Banner:    jsonString(adds, "aspect_ratio_16_6", "source"),
			Thumb:     jsonString(item, "thumbnail", "source"),
		}
	}

	thumbs := item.Get("thumbnails")
	t169 := jsonString(thumbs, "16_9", "source")
	background := jsonString(thumbs, "16_9_background", "source")
	if background == "" {
		background = t169
	}
	return Assets{
		Icon:      jsonString(thumbs, "1_1", "source"),
		Poster:    jsonString(thumbs, "2_3", "source"),
		Fanart:    background,
		Landscape: background,
		Banner:    jsonString(thumbs, "16_6", "source"),
		Thumb:     t169,
	}
}

// linkString reads a _links entry that is sometimes a bare string and
// sometimes an object with an href.
func linkString(v *fastjson.Value, keys ...string) string {
	field := v.Get(keys...)
	if field == nil {
		return ""
	}
	if field.Type() == fastjson.TypeString {
		return string(field.GetStringBytes())
	}
	return string(field.GetStringBytes("href"))
}

// trailerString reads a trailer reference that is a URL in one shape and a
// numeric video id in the other.
func trailerString(v *fastjson.Value, key string) string {
	field := v.Get(key)
	if field == nil {
		return ""
	}
	switch field.Type() {
	case fastjson.TypeString:
		return string(field.GetStringBytes())
	case fastjson.TypeNumber:
		return strconv.FormatInt(field.GetInt64(), 10)
	}
	return ""
}
