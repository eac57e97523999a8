package dropout

import (
	"fmt"
	"html"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"
)

const hlsMimeType = "application/vnd.apple.mpegurl"

// PlayableFromID resolves a video id to a playable entity and its stream
// descriptor.
func (s *Session) PlayableFromID(id int64) (Playable, *VideoData, error) {
	raw, err := s.getVideoByID(id)
	if err != nil {
		return nil, nil, err
	}
	embedURL, err := s.embedForSlug(jsonString(raw, "url"))
	if err != nil {
		return nil, nil, err
	}
	return s.playableFromEmbed(id, embedURL, raw)
}

// PlayableFromSlug resolves a page slug: the embed URL is scraped first and
// the video id recovered from it.
func (s *Session) PlayableFromSlug(slug string) (Playable, *VideoData, error) {
	embedURL, err := s.embedForSlug(slug)
	if err != nil {
		return nil, nil, err
	}
	match := embedIDFinder.FindStringSubmatch(embedURL)
	if match == nil {
		return nil, nil, fmt.Errorf("%w: no video id in embed url %q", ErrScrape, embedURL)
	}
	id, _ := strconv.ParseInt(match[1], 10, 64)
	s.logger.Debug().Msgf("Resolved slug %q to video %d", slug, id)

	raw, err := s.getVideoByID(id)
	if err != nil {
		return nil, nil, err
	}
	return s.playableFromEmbed(id, embedURL, raw)
}

func (s *Session) getVideoByID(id int64) (*fastjson.Value, error) {
	raw, err := s.apiRequest(http.MethodGet, fmt.Sprintf("/videos/%d", id), nil, true)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("could not find video %d", id)
	}
	return raw, nil
}

// embedForSlug scrapes the embed URL off the video's page.
func (s *Session) embedForSlug(slug string) (string, error) {
	body, err := s.websiteRequest(http.MethodGet, "/videos/"+slug, nil)
	if err != nil {
		return "", fmt.Errorf("fetching video page for %q: %w", slug, err)
	}
	match := embedFinder.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("%w: no embed url on page for %q", ErrScrape, slug)
	}
	return html.UnescapeString(string(match[1])), nil
}

// configFromEmbed fetches the embed page, scrapes its inline player data and
// follows the config URL inside it to the playback configuration.
func (s *Session) configFromEmbed(embedURL string) (*fastjson.Value, error) {
	req, err := http.NewRequest(http.MethodGet, embedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Referer", s.websiteURL)

	body, err := s.api.MakeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("fetching embed page: %w", err)
	}

	match := playerConfigFinder.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("%w: no player data in embed page %q", ErrScrape, embedURL)
	}
	playerData, err := parseJSON(match[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad player data in embed page: %v", ErrScrape, err)
	}
	configURL := jsonString(playerData, "config_url")
	if configURL == "" {
		return nil, fmt.Errorf("%w: no config url in player data", ErrScrape)
	}

	req, err = http.NewRequest(http.MethodGet, configURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating config request: %w", err)
	}
	body, err = s.api.MakeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("fetching playback config: %w", err)
	}
	config, err := parseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decoding playback config: %w", err)
	}
	return config, nil
}

func (s *Session) playableFromEmbed(id int64, embedURL string, raw *fastjson.Value) (Playable, *VideoData, error) {
	config, err := s.configFromEmbed(embedURL)
	if err != nil {
		return nil, nil, err
	}

	playable, err := s.parsePlayable(raw, true)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.videoData(id, config, subtitleURLs(raw))
	if err != nil {
		return nil, nil, err
	}
	return playable, data, nil
}

// subtitleURLs collects subtitle track links from the video detail payload,
// WebVTT before SRT for each track.
func subtitleURLs(raw *fastjson.Value) []string {
	var subs []string
	for _, track := range raw.GetArray("tracks", "subtitles") {
		for _, format := range []string{"vtt", "srt"} {
			if href := jsonString(track, "_links", format, "href"); href != "" {
				subs = append(subs, href)
			}
		}
	}
	return subs
}

// videoData picks the stream URL out of the playback config. HLS is the
// preferred delivery; DASH stays disabled even when offered because the
// backend returns a homebrew JSON manifest players cannot consume.
func (s *Session) videoData(id int64, config *fastjson.Value, subtitles []string) (*VideoData, error) {
	formats := config.Get("request", "files")
	if hls := formats.Get("hls"); hls != nil {
		s.logger.Debug().Msgf("Using HLS for video %d", id)
		cdn, err := bestCDN(hls)
		if err != nil {
			return nil, fmt.Errorf("video %d: %w", id, err)
		}
		return &VideoData{
			URL:       jsonString(cdn, "url"),
			MimeType:  hlsMimeType,
			Subtitles: subtitles,
		}, nil
	}
	return nil, fmt.Errorf("%w: no usable stream format for video %d", ErrNotPlayable, id)
}

// bestCDN picks the format's declared default CDN when the map carries it,
// else the first CDN in map order.
func bestCDN(format *fastjson.Value) (*fastjson.Value, error) {
	cdns := format.GetObject("cdns")
	if cdns == nil || cdns.Len() == 0 {
		return nil, fmt.Errorf("%w: no cdns offered", ErrNotPlayable)
	}

	if def := jsonString(format, "default_cdn"); def != "" {
		if cdn := cdns.Get(def); cdn != nil {
			return cdn, nil
		}
	}

	var first *fastjson.Value
	cdns.Visit(func(_ []byte, v *fastjson.Value) {
		if first == nil {
			first = v
		}
	})
	return first, nil
}
