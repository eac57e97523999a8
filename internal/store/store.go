package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	cookieJarFile   = "cookiejar.json"
	credentialsFile = "credentials.json"
	playStateFile   = "playstate.json"
	searchesFile    = "searches.json"

	maxSearches = 15
)

// Credentials is a cached login result, keyed by a digest of the
// username/password pair it was derived from.
type Credentials struct {
	Hash   string    `json:"hash"`
	Token  string    `json:"token"`
	UserID int64     `json:"user_id"`
	When   time.Time `json:"when"`
}

// PlayState is a watch-progress snapshot for a single video. Instances are
// replaced wholesale, never partially updated. FromLocalStore marks records
// read back from disk (written by the playback monitor) as opposed to ones
// reported by the API.
type PlayState struct {
	Completed      bool      `json:"completed"`
	DurationS      int64     `json:"duration_s"`
	Timecode       int64     `json:"timecode"`
	LastSeen       time.Time `json:"last_seen"`
	FromLocalStore bool      `json:"-"`
}

// Search is a remembered search term.
type Search struct {
	Term  string    `json:"search"`
	First time.Time `json:"first"`
}

// Store reads and writes the durable JSON documents the client depends on:
// website cookies, cached credentials, per-video play state and recent
// searches.
type Store struct {
	path   string
	logger zerolog.Logger
}

func New(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) GetCookieJar() map[string]string {
	jar := map[string]string{}
	s.readJSON(cookieJarFile, &jar)
	return jar
}

func (s *Store) SetCookieJar(cookies map[string]string) error {
	return s.writeJSON(cookieJarFile, cookies)
}

// GetCredentials returns the cached credentials record, or nil if none is
// stored.
func (s *Store) GetCredentials() *Credentials {
	var creds Credentials
	if !s.readJSON(credentialsFile, &creds) || creds.Hash == "" {
		return nil
	}
	return &creds
}

// SetCredentials persists a credentials record; nil deletes the cached one.
func (s *Store) SetCredentials(creds *Credentials) error {
	if creds == nil {
		if err := os.Remove(s.filePath(credentialsFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting credentials: %w", err)
		}
		return nil
	}
	return s.writeJSON(credentialsFile, creds)
}

// GetPlayStates returns every locally persisted play state, keyed by video
// id, each flagged as local.
func (s *Store) GetPlayStates() map[int64]PlayState {
	raw := map[string]PlayState{}
	s.readJSON(playStateFile, &raw)

	states := make(map[int64]PlayState, len(raw))
	for key, ps := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn().Msgf("Skipping bogus play state key %q", key)
			continue
		}
		ps.FromLocalStore = true
		states[id] = ps
	}
	return states
}

func (s *Store) GetPlayState(videoID int64) *PlayState {
	raw := map[string]PlayState{}
	s.readJSON(playStateFile, &raw)

	ps, ok := raw[strconv.FormatInt(videoID, 10)]
	if !ok {
		return nil
	}
	ps.FromLocalStore = true
	return &ps
}

func (s *Store) SetPlayState(videoID int64, ps PlayState) error {
	raw := map[string]PlayState{}
	s.readJSON(playStateFile, &raw)
	raw[strconv.FormatInt(videoID, 10)] = ps
	return s.writeJSON(playStateFile, raw)
}

type searchesDoc struct {
	Searches []Search `json:"searches"`
}

func (s *Store) GetSearches() []Search {
	var doc searchesDoc
	s.readJSON(searchesFile, &doc)
	return doc.Searches
}

// AddSearch remembers a search term, de-duplicated by term and capped at the
// most recent entries.
func (s *Store) AddSearch(term string) error {
	var doc searchesDoc
	s.readJSON(searchesFile, &doc)

	for _, existing := range doc.Searches {
		if existing.Term == term {
			return nil
		}
	}

	doc.Searches = append(doc.Searches, Search{Term: term, First: time.Now()})
	if len(doc.Searches) > maxSearches {
		doc.Searches = doc.Searches[1:]
	}
	return s.writeJSON(searchesFile, &doc)
}

func (s *Store) RemoveSearch(term string) error {
	var doc searchesDoc
	s.readJSON(searchesFile, &doc)

	kept := doc.Searches[:0]
	for _, existing := range doc.Searches {
		if existing.Term != term {
			kept = append(kept, existing)
		}
	}
	doc.Searches = kept
	return s.writeJSON(searchesFile, &doc)
}

func (s *Store) filePath(name string) string {
	return filepath.Join(s.path, name)
}

// readJSON loads a document into v, reporting whether it existed and parsed.
func (s *Store) readJSON(name string, v interface{}) bool {
	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Msgf("Failed to read %s: %v", name, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn().Msgf("Failed to parse %s: %v", name, err)
		return false
	}
	return true
}

// writeJSON writes a document atomically, via a uniquely named temp file in
// the same directory.
func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	tmp := s.filePath(fmt.Sprintf("%s.%s.tmp", name, uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, s.filePath(name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
