package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/ottkit/dropout/internal/config"
	"github.com/ottkit/dropout/internal/logger"
	"github.com/ottkit/dropout/internal/store"
	"github.com/ottkit/dropout/pkg/dropout"
	"github.com/ottkit/dropout/pkg/version"
)

// Start wires the session together and dispatches one verb. Rendering is
// deliberately dumb: results go to stdout as JSON, anything richer is the
// host application's job.
func Start(ctx context.Context, args []string) error {
	cfg := config.Get()
	log := logger.Default()

	log.Info().Msgf("Version: %s", version.GetInfo().String())
	log.Debug().Msgf("Config loaded from %s", cfg.JsonFile())

	st := store.New(cfg.Path, logger.New("store"))
	session, err := dropout.New(dropout.Options{
		Email:     cfg.Email,
		Password:  cfg.Password,
		Debug:     cfg.Debug,
		Proxy:     cfg.Proxy,
		RateLimit: cfg.RateLimit,
		Store:     st,
		Logger:    logger.New("api"),
	})
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"status"}
	}
	verb, rest := args[0], args[1:]

	switch verb {
	case "status":
		return printJSON(map[string]any{
			"logged_in":        session.LoggedIn,
			"has_subscription": session.HasSubscription,
			"user_id":          session.UserID(),
		})
	case "browse":
		return printPage(session.GetBrowse(pageArg(rest)))
	case "featured":
		return printPage(session.GetFeatured(pageArg(rest)))
	case "new-releases":
		return printPage(session.GetNewReleases(pageArg(rest)))
	case "trending":
		return printPage(session.GetTrending(pageArg(rest)))
	case "all-series":
		return printPage(session.GetAllSeries(pageArg(rest)))
	case "my-list":
		return printPage(session.GetMyList(pageArg(rest)))
	case "continue-watching":
		return printPage(session.GetContinueWatching(pageArg(rest)))
	case "search":
		if len(rest) == 0 {
			return fmt.Errorf("search needs a query")
		}
		if err := st.AddSearch(rest[0]); err != nil {
			log.Warn().Msgf("Could not remember search: %v", err)
		}
		return printPage(session.Search(rest[0], pageArg(rest[1:])))
	case "searches":
		return printJSON(st.GetSearches())
	case "forget":
		if len(rest) == 0 {
			return fmt.Errorf("forget needs a search term")
		}
		return st.RemoveSearch(rest[0])
	case "collection":
		id, err := idArg(rest)
		if err != nil {
			return err
		}
		collection, err := session.GetCollection(id)
		if err != nil {
			return err
		}
		return printJSON(collection)
	case "series":
		id, err := idArg(rest)
		if err != nil {
			return err
		}
		series, err := session.GetSeries(id)
		if err != nil {
			return err
		}
		return printJSON(series)
	case "items":
		id, err := idArg(rest)
		if err != nil {
			return err
		}
		return printPage(session.GetCollectionItems(pageArg(rest[1:]), id))
	case "play":
		if len(rest) == 0 {
			return fmt.Errorf("play needs a video id or slug")
		}
		var playable dropout.Playable
		var data *dropout.VideoData
		if id, convErr := strconv.ParseInt(rest[0], 10, 64); convErr == nil {
			playable, data, err = session.PlayableFromID(id)
		} else {
			playable, data, err = session.PlayableFromSlug(rest[0])
		}
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"playable": playable, "stream": data})
	case "add", "remove":
		if len(rest) < 2 {
			return fmt.Errorf("%s needs a media type and an id", verb)
		}
		id, err := idArg(rest[1:])
		if err != nil {
			return err
		}
		ok := false
		if verb == "add" {
			ok = session.AddToList(rest[0], id)
		} else {
			ok = session.RemoveFromList(rest[0], id)
		}
		return printJSON(map[string]any{"ok": ok})
	case "logout":
		return session.Logout()
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

func pageArg(args []string) int {
	if len(args) > 0 {
		if page, err := strconv.Atoi(args[0]); err == nil && page > 0 {
			return page
		}
	}
	return 1
}

func idArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing id argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func printPage(page dropout.PaginatedMedia, err error) error {
	if err != nil {
		return err
	}
	return printJSON(page)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
