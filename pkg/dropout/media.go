package dropout

import (
	"time"

	"github.com/ottkit/dropout/internal/store"
)

// Assets is the set of image URLs a container entity carries. Icon, Poster
// and Banner are not present in every payload shape.
type Assets struct {
	Icon      string `json:"icon,omitempty"`
	Poster    string `json:"poster,omitempty"`
	Fanart    string `json:"fanart"`
	Landscape string `json:"landscape"`
	Banner    string `json:"banner,omitempty"`
	Thumb     string `json:"thumb"`
}

// entity carries the identity and watchlist annotation every media variant
// shares. IsInList is derived per request from the session's watchlist cache,
// it is never persisted.
type entity struct {
	ID       int64 `json:"id"`
	IsInList bool  `json:"is_in_list"`
}

func (e *entity) EntityID() int64    { return e.ID }
func (e *entity) InList() bool       { return e.IsInList }
func (e *entity) setInList(val bool) { e.IsInList = val }
func (e *entity) media()             {}

// Media is the closed set of catalog entities the normalizer produces:
// *Collection, *Series, *Season, *UnreleasedVideo, *ReleasedVideo and *Movie.
type Media interface {
	EntityID() int64
	InList() bool
	setInList(bool)
	media()
}

// Playable is the subset of Media that can resolve to a stream:
// *ReleasedVideo and *Movie.
type Playable interface {
	Media
	playable()
}

type Collection struct {
	entity
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	ItemsCount       int64     `json:"items_count"`
	Thumbnail        string    `json:"thumbnail,omitempty"`
	Assets           *Assets   `json:"assets,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

type Series struct {
	entity
	CollectionPage   string    `json:"collection_page,omitempty"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	Seasons          int64     `json:"seasons"`
	TrailerURL       string    `json:"trailer_url,omitempty"`
	Assets           Assets    `json:"assets"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Season struct {
	entity
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	SeasonNumber  int64     `json:"season_number"`
	EpisodesCount int64     `json:"episodes_count"`
	TrailerURL    string    `json:"trailer_url,omitempty"`
	Thumbnail     string    `json:"thumbnail"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VideoSeries is a denormalized backreference from an episode to its series.
type VideoSeries struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// VideoSeason is a denormalized backreference from an episode to its season.
type VideoSeason struct {
	Name          string `json:"name"`
	Number        int64  `json:"number"`
	EpisodeNumber int64  `json:"episode_number,omitempty"`
}

type VideoReleaseDate struct {
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
}

// UnreleasedVideo is a video announced but not yet watchable; the payload
// carries no metadata block, only a trailer.
type UnreleasedVideo struct {
	entity
	Title            string    `json:"title"`
	TrailerSlug      string    `json:"trailer_slug"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	DurationS        int64     `json:"duration_s"`
	Thumbnail        string    `json:"thumbnail"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ReleasedVideo struct {
	entity
	CollectionID     int64              `json:"collection_id"`
	Title            string             `json:"title"`
	Slug             string             `json:"slug"`
	ShortDescription string             `json:"short_description"`
	Description      string             `json:"description"`
	URL              string             `json:"url"`
	DurationS        int64              `json:"duration_s"`
	Series           *VideoSeries       `json:"series,omitempty"`
	Season           *VideoSeason       `json:"season,omitempty"`
	Thumbnail        string             `json:"thumbnail"`
	Tags             []string           `json:"tags"`
	ReleaseDates     []VideoReleaseDate `json:"release_dates,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	PlayState        *store.PlayState   `json:"play_state,omitempty"`
}

func (v *ReleasedVideo) playable() {}

// Movie is a released video backed by a single-video canonical collection,
// enriched with the collection's artwork and trailer.
type Movie struct {
	ReleasedVideo
	Assets     Assets `json:"assets"`
	TrailerURL string `json:"trailer_url,omitempty"`
}

// PaginatedMedia is one page of parsed media. NextPage is nil exactly when
// the backend reports no further page.
type PaginatedMedia struct {
	Items    []Media `json:"items"`
	Page     int     `json:"page"`
	NextPage *int    `json:"next_page,omitempty"`
}

// VideoData is a resolved playback descriptor. It is never persisted.
type VideoData struct {
	URL       string   `json:"url"`
	MimeType  string   `json:"mime_type"`
	Subtitles []string `json:"subtitles"`
}

// releasedVideo extracts the released-video core of a media item, nil when
// the item is not playable.
func releasedVideo(m Media) *ReleasedVideo {
	switch v := m.(type) {
	case *ReleasedVideo:
		return v
	case *Movie:
		return &v.ReleasedVideo
	}
	return nil
}
