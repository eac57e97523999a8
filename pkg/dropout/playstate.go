package dropout

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
	"github.com/ottkit/dropout/internal/store"
)

// mergePlayState keeps whichever snapshot was seen more recently; ties keep
// the incumbent.
func mergePlayState(current, candidate *store.PlayState) *store.PlayState {
	if current == nil {
		return candidate
	}
	if candidate != nil && candidate.LastSeen.After(current.LastSeen) {
		return candidate
	}
	return current
}

func parsePlayState(v *fastjson.Value) *store.PlayState {
	return &store.PlayState{
		Completed: v.GetBool("completed"),
		DurationS: v.GetInt64("duration"),
		Timecode:  v.GetInt64("timecode"),
		LastSeen:  time.Unix(v.GetInt64("timestamp"), 0),
	}
}

// fetchPlayStates queries the remote play-state endpoint for a batch of
// video ids. Failures degrade to an empty result.
func (s *Session) fetchPlayStates(videoIDs []int64) []*fastjson.Value {
	idStrs := make([]string, 0, len(videoIDs))
	for _, id := range videoIDs {
		idStrs = append(idStrs, strconv.FormatInt(id, 10))
	}
	data, err := s.apiRequest(http.MethodGet, fmt.Sprintf("/users/%d/play_state", s.userID), url.Values{
		"video_ids": {strings.Join(idStrs, ",")},
	}, false)
	if err != nil {
		s.logger.Error().Msgf("Play state query failed: %v", err)
		return nil
	}
	if data == nil {
		return nil
	}
	return data.GetArray("entries")
}

// GetContinueWatching composes the continue-watching view: the remote page,
// minus entries the local store already knows are finished, plus (on page 1)
// locally tracked in-progress videos the remote has not caught up on,
// re-sorted by recency.
func (s *Session) GetContinueWatching(page int) (PaginatedMedia, error) {
	s.ensureMyList()
	data, err := s.apiRequest(http.MethodGet, fmt.Sprintf("/users/%d/watching", s.userID), url.Values{
		"page":                {strconv.Itoa(page)},
		"per_page":            {strconv.Itoa(defaultPerPage)},
		"include_events":      {"1"},
		"include_collections": {"1"},
	}, false)
	if err != nil {
		return PaginatedMedia{}, err
	}
	res := s.parseComPage(data, page, "items")

	// Entries both completed and locally sourced would only re-surface
	// items the user already finished; the remote just has not caught up.
	kept := res.Items[:0]
	for _, m := range res.Items {
		if rv := releasedVideo(m); rv != nil && rv.PlayState != nil &&
			rv.PlayState.Completed && rv.PlayState.FromLocalStore {
			continue
		}
		kept = append(kept, m)
	}
	res.Items = kept

	if page == 1 {
		res.Items = append(res.Items, s.localOnlyWatching(res.Items)...)
		sortByLastSeen(res.Items)
	}

	return res, nil
}

// localOnlyWatching resolves locally tracked, unfinished videos absent from
// the remote result, each fetched individually.
func (s *Session) localOnlyWatching(remote []Media) []Media {
	states := s.store.GetPlayStates()
	for _, m := range remote {
		switch m.(type) {
		case *ReleasedVideo, *Movie, *UnreleasedVideo:
			delete(states, m.EntityID())
		}
	}

	ids := make([]int64, 0, len(states))
	for id, ps := range states {
		if !ps.Completed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var extras []Media
	for _, id := range ids {
		raw, err := s.getVideoByID(id)
		if err != nil {
			s.logger.Warn().Msgf("Could not fetch locally tracked video %d: %v", id, err)
			continue
		}
		playable, err := s.parsePlayable(raw, true)
		if err != nil {
			s.logger.Warn().Msgf("Could not parse locally tracked video %d: %v", id, err)
			continue
		}
		extras = append(extras, playable)
	}
	return extras
}

// sortByLastSeen orders media by play-state recency, newest first; entities
// without play state sort last.
func sortByLastSeen(items []Media) {
	lastSeen := func(m Media) time.Time {
		if rv := releasedVideo(m); rv != nil && rv.PlayState != nil {
			return rv.PlayState.LastSeen
		}
		return time.Time{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return lastSeen(items[i]).After(lastSeen(items[j]))
	})
}

// parsePlayable parses a raw item that must resolve to something playable,
// then reconciles its play state from whichever source is freshest.
func (s *Session) parsePlayable(item *fastjson.Value, embedded bool) (Playable, error) {
	switch typ := jsonString(item, "type"); typ {
	case "video":
		media, err := s.parseVideo(item, embedded)
		if err != nil {
			return nil, err
		}
		rv, ok := media.(*ReleasedVideo)
		if !ok {
			return nil, fmt.Errorf("%w: video %d is unreleased", ErrNotPlayable, media.EntityID())
		}
		if ps := item.Get("_embedded", "play_state"); ps != nil {
			rv.PlayState = mergePlayState(rv.PlayState, parsePlayState(ps))
			return rv, nil
		}
		s.resolvePlayState(rv)
		return rv, nil
	case "movie":
		movie, err := s.parseMovie(item, embedded)
		if err != nil {
			return nil, err
		}
		s.resolvePlayState(&movie.ReleasedVideo)
		return movie, nil
	default:
		return nil, fmt.Errorf("unknown playable type %q", typ)
	}
}

// resolvePlayState merges in the remote play state for a single video.
func (s *Session) resolvePlayState(rv *ReleasedVideo) {
	for _, entry := range s.fetchPlayStates([]int64{rv.ID}) {
		if entry.GetInt64("video_id") == rv.ID {
			rv.PlayState = mergePlayState(rv.PlayState, parsePlayState(entry))
			return
		}
	}
}
