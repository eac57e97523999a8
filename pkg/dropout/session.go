package dropout

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/ottkit/dropout/internal/request"
	"github.com/ottkit/dropout/internal/store"
)

const (
	defaultWebsiteURL = "https://www.dropout.tv"
	defaultAPIURLCom  = "https://api.vhx.com"
	defaultAPIURLTV   = "https://api.vhx.tv"

	siteID    = 36348
	productID = 28599

	newReleasesCollectionID = 129054
	allSeriesCollectionID   = 243176
	trendingCollectionID    = 239409

	defaultPerPage = 25

	// How long a cached login survives before a live probe is forced. The
	// window only amortizes repeated process launches within one user
	// interaction.
	credentialsTTL = 5 * time.Minute
)

// Options configures a Session. Zero-value URL fields fall back to the
// production hosts; tests point them at fixtures.
type Options struct {
	Email    string
	Password string

	WebsiteURL string
	APIURLCom  string
	APIURLTV   string

	// Debug escalates transient API failures to hard errors.
	Debug bool

	Proxy     string
	RateLimit string

	Store  *store.Store
	Logger zerolog.Logger
}

// Session owns the authenticated state of one process run: bearer token,
// user id, cookie jar and the watchlist-id cache. It is not safe for
// concurrent use.
type Session struct {
	email    string
	password string

	websiteURL string
	apiURLCom  string
	apiURLTV   string
	apiPrefix  string
	debug      bool

	store  *store.Store
	logger zerolog.Logger

	website *request.Client
	api     *request.Client
	jar     http.CookieJar

	token  string
	userID int64
	myList map[int64]struct{}

	LoggedIn        bool
	HasSubscription bool
}

// New establishes a session: cached credentials if still fresh, else a
// cookie-based status probe, else a full login with the configured
// credentials. The returned session is usable even when not logged in; the
// caller checks LoggedIn/HasSubscription.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session requires a store")
	}

	s := &Session{
		email:      opts.Email,
		password:   opts.Password,
		websiteURL: opts.WebsiteURL,
		apiURLCom:  opts.APIURLCom,
		apiURLTV:   opts.APIURLTV,
		debug:      opts.Debug,
		store:      opts.Store,
		logger:     opts.Logger,
	}
	if s.websiteURL == "" {
		s.websiteURL = defaultWebsiteURL
	}
	if s.apiURLCom == "" {
		s.apiURLCom = defaultAPIURLCom
	}
	if s.apiURLTV == "" {
		s.apiURLTV = defaultAPIURLTV
	}
	s.apiPrefix = fmt.Sprintf("/v2/sites/%d", siteID)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	s.jar = jar
	s.loadCookies()

	rl := request.ParseRateLimit(opts.RateLimit)
	s.website = request.New(
		request.WithCookieJar(s.jar),
		request.WithLogger(s.logger),
		request.WithProxy(opts.Proxy),
		request.WithRateLimiter(rl),
		request.WithMaxRetries(0),
	)
	s.api = request.New(
		request.WithLogger(s.logger),
		request.WithProxy(opts.Proxy),
		request.WithRateLimiter(rl),
	)

	usedCache, err := s.ensureLoggedIn()
	if err != nil {
		return nil, err
	}

	if !usedCache && s.LoggedIn && s.HasSubscription {
		s.logger.Debug().Msgf("Caching credentials for user %d", s.userID)
		if err := s.store.SetCredentials(&store.Credentials{
			Hash:   s.credentialsHash(),
			Token:  s.token,
			UserID: s.userID,
			When:   time.Now(),
		}); err != nil {
			s.logger.Warn().Msgf("Failed to cache credentials: %v", err)
		}
	}

	return s, nil
}

func (s *Session) credentialsHash() string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s.email+s.password)))
}

// ensureLoggedIn runs the authentication chain, short-circuiting on first
// success. The bool reports whether cached credentials were reused.
func (s *Session) ensureLoggedIn() (bool, error) {
	if creds := s.store.GetCredentials(); creds != nil {
		hash := s.credentialsHash()
		age := time.Since(creds.When)
		if hash == creds.Hash && age < credentialsTTL {
			s.token = creds.Token
			s.userID = creds.UserID
			s.LoggedIn = true
			s.HasSubscription = true
			s.logger.Debug().Msgf("Using cached credentials for user %d", s.userID)
			return true, nil
		}
		s.logger.Debug().Msgf("Discarding cached credentials (hash match=%t, age=%s)", hash == creds.Hash, age)
		if err := s.store.SetCredentials(nil); err != nil {
			s.logger.Warn().Msgf("Failed to delete cached credentials: %v", err)
		}
	}

	ok, err := s.updateFromWebsite()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	return false, s.doLogin()
}

func (s *Session) doLogin() error {
	if s.email == "" || s.password == "" {
		s.logger.Warn().Msg("No credentials set, cannot login")
		return nil
	}

	authenticityToken, err := s.loginCSRFToken()
	if err != nil {
		return err
	}

	s.logger.Debug().Msg("Attempting login")
	if _, err := s.websiteRequest(http.MethodPost, "/login", url.Values{
		"email":              {s.email},
		"password":           {s.password},
		"authenticity_token": {authenticityToken},
		"utf8":               {"true"},
	}); err != nil {
		s.logger.Warn().Msgf("Login failed: %v", err)
		return nil
	}

	_, err = s.updateFromWebsite()
	return err
}

// updateFromWebsite probes the subscription status through the cookie
// session and, when logged in, scrapes the bearer token off the home page.
func (s *Session) updateFromWebsite() (bool, error) {
	if !s.updateStatus() {
		return false, nil
	}
	if err := s.updateToken(); err != nil {
		return false, err
	}
	return true, nil
}

// updateStatus hits the subscription-status endpoint with existing cookies.
// A null plan payload means the cookies are dead; token and cookie state are
// cleared so the next step starts clean.
func (s *Session) updateStatus() bool {
	body, err := s.websiteRequest(http.MethodGet, "/customer_settings/subscription_plans", nil)
	if err != nil {
		s.logger.Debug().Msgf("Status probe failed: %v", err)
		s.clearAuthData()
		return false
	}

	plan, err := parseJSON(body)
	if err != nil || plan == nil || plan.Type() == jsonNullType {
		s.logger.Debug().Msg("Status probe returned no plan, not logged in")
		s.LoggedIn = false
		s.HasSubscription = false
		s.clearAuthData()
		return false
	}

	// A plan with no expiry information counts as expired.
	expired := true
	if plan.Exists("current_plan", "has_expired") {
		expired = plan.GetBool("current_plan", "has_expired")
	}
	s.LoggedIn = true
	s.HasSubscription = !expired
	s.logger.Debug().Msgf("Status probe: logged_in=%t, has_subscription=%t", s.LoggedIn, s.HasSubscription)
	return true
}

// updateToken scrapes the inline VHX config off the home page for the
// bearer token and current-user id. Missing either is a hard error.
func (s *Session) updateToken() error {
	body, err := s.websiteRequest(http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("fetching home page: %w", err)
	}

	token, userID, err := scrapeTokenAndUser(body)
	if err != nil {
		return err
	}

	s.token = token
	s.userID = userID
	s.logger.Debug().Msgf("Updated bearer token for user %d", s.userID)
	return nil
}

// Logout posts to the logout endpoint and wipes every piece of session
// state, including cached credentials.
func (s *Session) Logout() error {
	token, err := s.metaCSRFToken()
	if err != nil {
		return err
	}
	if _, err := s.websiteRequest(http.MethodPost, "/logout", url.Values{
		"authenticity_token": {token},
	}); err != nil {
		s.logger.Warn().Msgf("Logout request failed: %v", err)
	}

	s.LoggedIn = false
	s.HasSubscription = false
	s.clearAuthData()
	if err := s.store.SetCredentials(nil); err != nil {
		return fmt.Errorf("deleting cached credentials: %w", err)
	}
	return nil
}

func (s *Session) clearAuthData() {
	if err := s.store.SetCookieJar(map[string]string{}); err != nil {
		s.logger.Warn().Msgf("Failed to clear cookie jar: %v", err)
	}
	if jar, err := cookiejar.New(nil); err == nil {
		s.jar = jar
		s.website.SetCookieJar(jar)
	}
	s.token = ""
}

// loadCookies hydrates the in-memory jar from the persisted cookie map.
func (s *Session) loadCookies() {
	u, err := url.Parse(s.websiteURL)
	if err != nil {
		return
	}
	stored := s.store.GetCookieJar()
	cookies := make([]*http.Cookie, 0, len(stored))
	for name, value := range stored {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	s.jar.SetCookies(u, cookies)
}

// persistCookies writes the jar back to the store. Runs after every website
// request so later calls and later process runs observe the newest cookies.
func (s *Session) persistCookies() {
	u, err := url.Parse(s.websiteURL)
	if err != nil {
		return
	}
	out := map[string]string{}
	for _, c := range s.jar.Cookies(u) {
		out[c.Name] = c.Value
	}
	if err := s.store.SetCookieJar(out); err != nil {
		s.logger.Warn().Msgf("Failed to persist cookie jar: %v", err)
	}
}

// UserID returns the authenticated user's id, zero when not logged in.
func (s *Session) UserID() int64 {
	return s.userID
}
