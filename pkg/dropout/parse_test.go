package dropout

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

const fullShapeVideo = `{"entity": {
	"type": "video",
	"id": 101,
	"title": "Episode One",
	"slug": "episode-one",
	"page_url": "https://www.dropout.tv/videos/episode-one",
	"canonical_collection_id": 900,
	"short_description": "short",
	"description": "long",
	"duration": {"seconds": 1410},
	"created_at": "2023-05-01T10:00:00.123456Z",
	"updated_at": "2023-05-02T10:00:00Z",
	"thumbnails": {"16_9": {"source": "https://img/169.jpg"}},
	"metadata": {
		"series": {"name": "Game Changer", "id": 55},
		"season": {"name": "Season 2", "number": 2, "episode_number": "3"},
		"release_dates": [{"date": "2023-05-01", "location": "US"}],
		"tags": ["comedy", "panel"]
	}
}}`

const embeddedShapeVideo = `{
	"type": "video",
	"id": 102,
	"title": "Episode Two",
	"url": "episode-two",
	"canonical_collection_id": 900,
	"duration": {"seconds": 600},
	"created_at": "2023-05-01T10:00:00Z",
	"updated_at": "2023-05-01T10:00:00Z",
	"thumbnail": {"source": "https://img/t.jpg"},
	"_links": {"video_page": {"href": "https://www.dropout.tv/videos/episode-two"}},
	"metadata": {
		"series_name": "Game Changer",
		"series_id": "55",
		"season_name": "Season 1",
		"season_number": 1,
		"episode_number": 2
	},
	"tags": ["comedy"],
	"release_dates": [{"date": "2024-01-15", "location": "US"}],
	"_embedded": {"play_state": {"completed": false, "duration": 600, "timecode": 120, "timestamp": 1700000000}}
}`

func TestParseMediumFullShapeVideo(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	media, needPlayState, err := s.parseMedium(fastjson.MustParse(fullShapeVideo), false)
	require.NoError(t, err)
	assert.True(t, needPlayState, "no embedded play state means it still needs resolving")

	rv, ok := media.(*ReleasedVideo)
	require.True(t, ok)
	assert.EqualValues(t, 101, rv.EntityID())
	assert.Equal(t, "Episode One", rv.Title)
	assert.Equal(t, "episode-one", rv.Slug)
	assert.Equal(t, "https://www.dropout.tv/videos/episode-one", rv.URL)
	assert.EqualValues(t, 900, rv.CollectionID)
	assert.EqualValues(t, 1410, rv.DurationS)
	assert.Equal(t, "https://img/169.jpg", rv.Thumbnail)
	assert.Equal(t, []string{"comedy", "panel"}, rv.Tags)

	require.NotNil(t, rv.Series)
	assert.Equal(t, "Game Changer", rv.Series.Name)
	assert.EqualValues(t, 55, rv.Series.ID)
	require.NotNil(t, rv.Season)
	assert.EqualValues(t, 2, rv.Season.Number)
	assert.EqualValues(t, 3, rv.Season.EpisodeNumber, "string-typed episode numbers still parse")

	require.Len(t, rv.ReleaseDates, 1)
	assert.Equal(t, "US", rv.ReleaseDates[0].Location)
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), rv.ReleaseDates[0].Date)
	assert.Equal(t, 123456000, rv.CreatedAt.Nanosecond())
}

func TestParseMediumEmbeddedShapeVideo(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	media, needPlayState, err := s.parseMedium(fastjson.MustParse(embeddedShapeVideo), false)
	require.NoError(t, err)
	assert.False(t, needPlayState, "embedded play state is final")

	rv, ok := media.(*ReleasedVideo)
	require.True(t, ok)
	assert.Equal(t, "episode-two", rv.Slug)
	assert.Equal(t, "https://www.dropout.tv/videos/episode-two", rv.URL)
	assert.Equal(t, "https://img/t.jpg", rv.Thumbnail)

	require.NotNil(t, rv.Series)
	assert.EqualValues(t, 55, rv.Series.ID)
	require.NotNil(t, rv.Season)
	assert.EqualValues(t, 1, rv.Season.Number)
	assert.EqualValues(t, 2, rv.Season.EpisodeNumber)

	require.NotNil(t, rv.PlayState)
	assert.False(t, rv.PlayState.Completed)
	assert.EqualValues(t, 120, rv.PlayState.Timecode)
	assert.Equal(t, time.Unix(1700000000, 0), rv.PlayState.LastSeen)
	assert.False(t, rv.PlayState.FromLocalStore)
}

func TestParseMediumUnreleasedVideo(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	raw := `{
		"type": "video",
		"id": 103,
		"title": "Coming Soon",
		"url": "coming-soon-trailer",
		"duration": {"seconds": 90},
		"created_at": "2024-06-01T00:00:00Z",
		"updated_at": "2024-06-01T00:00:00Z",
		"thumbnail": {"source": "https://img/teaser.jpg"}
	}`
	media, needPlayState, err := s.parseMedium(fastjson.MustParse(raw), false)
	require.NoError(t, err)
	assert.False(t, needPlayState, "unreleased videos carry no play state")

	uv, ok := media.(*UnreleasedVideo)
	require.True(t, ok)
	assert.Equal(t, "Coming Soon", uv.Title)
	assert.Equal(t, "coming-soon-trailer", uv.TrailerSlug)
	assert.EqualValues(t, 90, uv.DurationS)
}

func TestParseMediumUntypedItemIsCollection(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	for _, raw := range []string{
		`{"id": 400, "slug": "animation", "name": "Animation", "items_count": 12, "thumbnail": {"source": "https://img/c.jpg"}}`,
		`{"type": null, "id": 400, "slug": "animation", "name": "Animation", "items_count": 12, "thumbnail": {"source": "https://img/c.jpg"}}`,
	} {
		media, _, err := s.parseMedium(fastjson.MustParse(raw), false)
		require.NoError(t, err)

		c, ok := media.(*Collection)
		require.True(t, ok)
		assert.EqualValues(t, 400, c.EntityID())
		assert.Equal(t, "Animation", c.Name)
		assert.EqualValues(t, 12, c.ItemsCount)
		assert.Equal(t, "https://img/c.jpg", c.Thumbnail)
	}
}

func TestParseMediumRecoversCollectionID(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	raw := `{
		"slug": "mystery-box",
		"name": "Mystery Box",
		"_links": {"items": {"href": "https://api.vhx.tv/collections/777/items?page=1"}}
	}`
	media, _, err := s.parseMedium(fastjson.MustParse(raw), false)
	require.NoError(t, err)
	assert.EqualValues(t, 777, media.EntityID())
}

func TestParseMediumRejectsReservedSlug(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	for _, slug := range []string{"featured", "continue-watching", "my-list", "new-releases", "trending", "all-series"} {
		raw := fmt.Sprintf(`{"id": 1, "slug": %q, "name": "x"}`, slug)
		_, _, err := s.parseMedium(fastjson.MustParse(raw), false)
		require.Error(t, err, slug)
		assert.ErrorIs(t, err, ErrSkipItem)
	}
}

func TestParseMediumUnknownTypeFails(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	_, _, err := s.parseMedium(fastjson.MustParse(`{"type": "hologram", "id": 1}`), false)
	require.Error(t, err)
}

func TestParseMediaSkipsBadItems(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	raw := fmt.Sprintf(`[%s, {"type": "hologram"}, {"slug": "featured"}]`, embeddedShapeVideo)
	items, err := fastjson.MustParse(raw).Array()
	require.NoError(t, err)

	out := s.parseMedia(items, parseOpts{fast: true})
	require.Len(t, out, 1)
	assert.EqualValues(t, 102, out[0].EntityID())
}

func TestParseMediumMyListAnnotation(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	media, _, err := s.parseMedium(fastjson.MustParse(embeddedShapeVideo), true)
	require.NoError(t, err)
	assert.True(t, media.InList())

	s.myList = map[int64]struct{}{102: {}}
	media, _, err = s.parseMedium(fastjson.MustParse(embeddedShapeVideo), false)
	require.NoError(t, err)
	assert.True(t, media.InList())

	s.myList = map[int64]struct{}{}
	media, _, err = s.parseMedium(fastjson.MustParse(embeddedShapeVideo), false)
	require.NoError(t, err)
	assert.False(t, media.InList())
}

func TestParseMediumSeries(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	raw := `{"entity": {
		"type": "series",
		"id": 55,
		"title": "Game Changer",
		"slug": "game-changer",
		"short_description": "s",
		"description": "d",
		"seasons_count": 6,
		"trailer_video_id": 999,
		"created_at": "2020-01-01T00:00:00Z",
		"updated_at": "2024-01-01T00:00:00Z",
		"thumbnails": {
			"16_9": {"source": "https://img/169.jpg"},
			"16_9_background": {"source": "https://img/bg.jpg"},
			"2_3": {"source": "https://img/poster.jpg"}
		}
	}}`
	media, needPlayState, err := s.parseMedium(fastjson.MustParse(raw), false)
	require.NoError(t, err)
	assert.False(t, needPlayState)

	sr, ok := media.(*Series)
	require.True(t, ok)
	assert.Equal(t, "Game Changer", sr.Title)
	assert.EqualValues(t, 6, sr.Seasons)
	assert.Equal(t, "999", sr.TrailerURL, "numeric trailer ids read as strings")
	assert.Equal(t, "https://img/poster.jpg", sr.Assets.Poster)
	assert.Equal(t, "https://img/bg.jpg", sr.Assets.Fanart)
	assert.Equal(t, "https://img/169.jpg", sr.Assets.Thumb)
}

func TestParseMediumSeason(t *testing.T) {
	s, _ := newCachedSession(t, nil, nil, nil)

	raw := `{"entity": {
		"type": "season",
		"id": 66,
		"title": "Season 2",
		"slug": "game-changer-season-2",
		"season_number": 2,
		"episodes_count": 8,
		"created_at": "2021-01-01T00:00:00Z",
		"updated_at": "2021-06-01T00:00:00Z",
		"thumbnails": {"16_9": {"source": "https://img/s2.jpg"}}
	}}`
	media, _, err := s.parseMedium(fastjson.MustParse(raw), false)
	require.NoError(t, err)

	sn, ok := media.(*Season)
	require.True(t, ok)
	assert.EqualValues(t, 2, sn.SeasonNumber)
	assert.EqualValues(t, 8, sn.EpisodesCount)
}

func movieCollectionItem(id, duration int) string {
	return fmt.Sprintf(`{
		"type": "video",
		"id": %d,
		"title": "Cut %d",
		"url": "cut-%d",
		"duration": {"seconds": %d},
		"created_at": "2022-01-01T00:00:00Z",
		"updated_at": "2022-01-01T00:00:00Z",
		"metadata": {},
		"_embedded": {"play_state": {"completed": false, "timestamp": 0}}
	}`, id, id, id, duration)
}

func TestParseMediumMoviePicksShortestCut(t *testing.T) {
	// A movie's canonical collection carries the feature plus bonus-length
	// variants; the shortest released video is the feature's actual cut in
	// this catalog, so that one wins.
	tv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/42/watchlist" {
			fmt.Fprint(w, `{"_embedded":{"items":[]}}`)
			return
		}
		http.NotFound(w, r)
	})
	com := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/sites/36348/collections/77/items", r.URL.Path)
		fmt.Fprintf(w, `{
			"items": [%s, %s, %s],
			"pagination": {"count": 3, "page": 1, "per_page": 25}
		}`, movieCollectionItem(1, 900), movieCollectionItem(2, 300), movieCollectionItem(3, 1200))
	})
	s, _ := newCachedSession(t, nil, com, tv)

	raw := `{
		"type": "movie",
		"id": 77,
		"trailer_url": "https://embed.vhx.tv/videos/888",
		"additional_images": {
			"aspect_ratio_2_3": {"source": "https://img/movie-poster.jpg"},
			"aspect_ratio_16_9_background": {"source": "https://img/movie-bg.jpg"}
		},
		"thumbnail": {"source": "https://img/movie-thumb.jpg"}
	}`
	media, needPlayState, err := s.parseMedium(fastjson.MustParse(raw), false)
	require.NoError(t, err)
	assert.True(t, needPlayState)

	movie, ok := media.(*Movie)
	require.True(t, ok)
	assert.EqualValues(t, 2, movie.EntityID(), "the movie resolves to its backing video")
	assert.EqualValues(t, 300, movie.DurationS)
	assert.Equal(t, "https://embed.vhx.tv/videos/888", movie.TrailerURL)
	assert.Equal(t, "https://img/movie-poster.jpg", movie.Assets.Poster)
	assert.Equal(t, "https://img/movie-bg.jpg", movie.Assets.Fanart)
	assert.Equal(t, "https://img/movie-thumb.jpg", movie.Assets.Thumb)
}

func TestParseMediumMovieWithoutVideosFails(t *testing.T) {
	tv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"_embedded":{"items":[]}}`)
	})
	com := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [], "pagination": {"count": 0, "page": 1, "per_page": 25}}`)
	})
	s, _ := newCachedSession(t, nil, com, tv)

	_, _, err := s.parseMedium(fastjson.MustParse(`{"type": "movie", "id": 77}`), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPlayable)
}

func TestJSONNumber(t *testing.T) {
	v := fastjson.MustParse(`{"n": 7, "s": "8", "bad": "x", "o": {}}`)
	assert.EqualValues(t, 7, jsonNumber(v, "n"))
	assert.EqualValues(t, 8, jsonNumber(v, "s"))
	assert.Zero(t, jsonNumber(v, "bad"))
	assert.Zero(t, jsonNumber(v, "o"))
	assert.Zero(t, jsonNumber(v, "missing"))
}

func TestParseTimestampBothShapes(t *testing.T) {
	withFraction, err := parseTimestamp("2023-05-01T10:00:00.123456Z")
	require.NoError(t, err)
	assert.Equal(t, 123456000, withFraction.Nanosecond())

	whole, err := parseTimestamp("2023-05-01T10:00:00Z")
	require.NoError(t, err)
	assert.Zero(t, whole.Nanosecond())

	_, err = parseTimestamp("yesterday")
	require.Error(t, err)
}
