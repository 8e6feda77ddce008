package vinnustund

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/telemetry"
	"github.com/Andriy31193/smastund-scrapper/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

// Default paths of the attendance system.
const (
	defaultLoginPath     = "/VS_MX/VSLogin.jsp"
	defaultTimesheetPath = "/VS_MX/starfsmadur/starfsm_timafaerslur_view.jsp"
)

// Response-shape markers used to classify a fetched page. Expiry is
// detected by these heuristics rather than a status code: the remote
// happily serves its login page with a 200.
const (
	loginPageMarker       = "VSLogin.jsp"
	usernameInputMarker   = `name="username"`
	passwordInputMarker   = `name="password"`
	authContentMarker     = tableMarkerClass
	authFormMarker        = timesheetFormName
	defaultMinPageBytes   = 2048
	defaultRequestTimeout = time.Second * 30
)

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string

	// LoginPath and TimesheetPath override the site defaults, mostly
	// for tests pointed at a fake server.
	LoginPath     string
	TimesheetPath string

	// MinDelay/MaxDelay bound the random pause inserted before each
	// outbound request to look less like a bot. Zero disables the pause.
	MinDelay time.Duration
	MaxDelay time.Duration

	// RefreshPeriod > 0 relogins on a timer regardless of observed
	// expiry, pre-empting server-side expiry.
	RefreshPeriod time.Duration
	// KeepAliveInterval > 0 issues periodic low-cost authenticated GETs
	// that reset the remote inactivity timer without touching cookies.
	KeepAliveInterval time.Duration

	// MinPageBytes is the smallest plausible authenticated page;
	// anything shorter classifies as expired. Defaults to 2048.
	MinPageBytes int

	Timeout time.Duration
}

// Client owns the session against the attendance system: it logs in,
// detects expiry, and keeps callers from ever reasoning about cookies.
// One Client is shared per process.
type Client struct {
	baseUrl *url.URL
	opts    ClientOptions
	http    *resty.Client
	// loginHttp runs login exchanges over a jar that is replaced per
	// attempt, so a captured cookie triple provably comes from a single
	// exchange. Only touched while loginMu is held.
	loginHttp *resty.Client

	// loginMu serializes logins: a scheduled relogin and a demand
	// relogin racing each other must not run concurrent login
	// exchanges against the same account.
	loginMu sync.Mutex
	session atomic.Pointer[Session]
	expired atomic.Bool
}

// browser-like headers the remote expects from a real session
var defaultHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// NewClient builds the session manager. The context controls the
// lifetime of the background refresh and keep-alive loops; cancel it at
// shutdown to stop them.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.LoginPath == "" {
		opts.LoginPath = defaultLoginPath
	}
	if opts.TimesheetPath == "" {
		opts.TimesheetPath = defaultTimesheetPath
	}
	if opts.MinPageBytes <= 0 {
		opts.MinPageBytes = defaultMinPageBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}

	c := &Client{
		baseUrl:   baseUrl,
		opts:      opts,
		http:      newRestyClient(baseUrl, opts),
		loginHttp: newRestyClient(baseUrl, opts),
	}
	// data requests attach cookies explicitly from the current session
	// snapshot; an implicit jar would let generations mix
	c.http.SetCookieJar(nil)

	if opts.RefreshPeriod > 0 {
		go c.refreshDaemon(ctx)
	}
	if opts.KeepAliveInterval > 0 {
		go c.keepAliveDaemon(ctx)
	}
	return c, nil
}

func newRestyClient(baseUrl *url.URL, opts ClientOptions) *resty.Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeaders(defaultHeaders)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/vinnustund/http")
	return client
}

// Session returns the current session snapshot, nil before the first
// successful login.
func (c *Client) Session() *Session {
	return c.session.Load()
}

// random pause between requests to simulate human pacing; bounds are
// config, not an engineered evasion subsystem
func (c *Client) delay(ctx context.Context) {
	if c.opts.MaxDelay <= 0 || c.opts.MaxDelay < c.opts.MinDelay {
		return
	}
	ms, err := random.IntRange(
		int(c.opts.MinDelay/time.Millisecond),
		int(c.opts.MaxDelay/time.Millisecond)+1,
	)
	if err != nil {
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
	}
}

// Login performs the full login exchange: fetch the login page, extract
// its hidden form fields, submit the credentials, and capture the
// session cookie triple. On success the stored Session is replaced
// atomically; on failure the previous session is left untouched.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) (*Session, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c.loginHttp.SetCookieJar(jar)

	c.delay(ctx)
	res, err := c.loginHttp.R().
		SetContext(ctx).
		Get(c.opts.LoginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return nil, fmt.Errorf("%w: fetch login page: %v", ErrTransportFailure, err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "login page returned non-200")
		return nil, fmt.Errorf("%w: login page returned status %d", ErrTransportFailure, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return nil, fmt.Errorf("%w: parse login page: %v", ErrTransportFailure, err)
	}

	form := ExtractLoginForm(doc)
	form["username"] = c.opts.Username
	form["password"] = c.opts.Password

	c.delay(ctx)
	res, err = c.loginHttp.R().
		SetContext(ctx).
		SetHeader("Referer", c.opts.BaseUrl+c.opts.LoginPath).
		SetFormData(form).
		Post(c.opts.LoginPath)
	if err != nil {
		span.SetStatus(codes.Error, "login request failed")
		return nil, fmt.Errorf("%w: login request: %v", ErrTransportFailure, err)
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "login returned failure status")
		return nil, fmt.Errorf("%w: login returned status %d", ErrTransportFailure, res.StatusCode())
	}

	sess, ok := sessionFromCookies(jar.Cookies(c.baseUrl), timezone.Now())
	if !ok {
		span.SetStatus(codes.Error, "login response missing session cookies")
		return nil, fmt.Errorf("%w: login response missing session cookies", ErrCredentialsRejected)
	}

	c.session.Store(sess)
	c.expired.Store(false)
	slog.InfoContext(ctx, "login successful", "login_at", sess.LoginAt)
	return sess, nil
}

// EnsureValid is the gate every data fetch passes through: it logs in
// when there is no session yet or the last fetch classified as expired,
// and is a no-op otherwise.
func (c *Client) EnsureValid(ctx context.Context) error {
	if c.session.Load() != nil && !c.expired.Load() {
		return nil
	}
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	// a concurrent caller may have logged in while we waited on the gate
	if c.session.Load() != nil && !c.expired.Load() {
		return nil
	}
	_, err := c.loginLocked(ctx)
	return err
}

// IsAuthenticated probes the timesheet page with the current cookies
// and classifies the result. Pure check, no session state is mutated.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "client:IsAuthenticated")
	defer span.End()

	sess := c.session.Load()
	if sess == nil {
		return false
	}

	c.delay(ctx)
	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(sess.Cookies()).
		SetQueryParam("sj", "true").
		Get(c.opts.TimesheetPath)
	if err != nil {
		span.SetStatus(codes.Error, "auth probe failed")
		return false
	}
	return c.classify(res) == nil
}

// FetchShiftPage loads the timesheet form and submits the date range,
// returning the resulting HTML. An expiry classification flips the
// session to expired before ErrSessionExpired is returned, so the next
// EnsureValid relogins.
func (c *Client) FetchShiftPage(ctx context.Context, dateFrom, dateTo string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:FetchShiftPage")
	defer span.End()

	sess := c.session.Load()
	if sess == nil {
		c.expired.Store(true)
		return nil, fmt.Errorf("%w: no session", ErrSessionExpired)
	}

	c.delay(ctx)
	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(sess.Cookies()).
		SetHeader("Referer", c.opts.BaseUrl).
		SetQueryParam("sj", "true").
		Get(c.opts.TimesheetPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch timesheet page")
		return nil, fmt.Errorf("%w: fetch timesheet page: %v", ErrTransportFailure, err)
	}
	if err := c.classify(res); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, c.noteExpiry(err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse timesheet page")
		return nil, fmt.Errorf("parse timesheet page: %w", err)
	}

	form := ExtractHiddenFields(doc, timesheetFormName)
	form["timabilFra"] = dateFrom
	form["timabilTil"] = dateTo
	if _, ok := form["sj"]; !ok {
		form["sj"] = "true"
	}
	if _, ok := form["showBak"]; !ok {
		form["showBak"] = "true"
	}

	c.delay(ctx)
	res, err = c.http.R().
		SetContext(ctx).
		SetCookies(sess.Cookies()).
		SetHeader("Referer", c.opts.BaseUrl+c.opts.TimesheetPath+"?sj=true").
		SetFormData(form).
		Post(c.opts.TimesheetPath)
	if err != nil {
		span.SetStatus(codes.Error, "timesheet query failed")
		return nil, fmt.Errorf("%w: timesheet query: %v", ErrTransportFailure, err)
	}
	if err := c.classify(res); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, c.noteExpiry(err)
	}

	return res.Body(), nil
}

// KeepAlive issues a low-cost authenticated GET purely to reset the
// remote inactivity timer. It never refreshes cookies and does not
// mutate expiry state.
func (c *Client) KeepAlive(ctx context.Context) error {
	sess := c.session.Load()
	if sess == nil {
		return fmt.Errorf("%w: no session", ErrSessionExpired)
	}

	c.delay(ctx)
	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(sess.Cookies()).
		Get("/")
	if err != nil {
		return fmt.Errorf("%w: keep-alive: %v", ErrTransportFailure, err)
	}
	return c.classify(res)
}

func (c *Client) noteExpiry(err error) error {
	if errors.Is(err, ErrSessionExpired) {
		c.expired.Store(true)
	}
	return err
}

// classify decides what a fetched page means: nil for an authenticated
// page, ErrSessionExpired when the remote bounced us to its login flow,
// ErrRemote for anything else unexpected. Must stay in sync across
// every fetch path; the retry-once contract depends on it.
func (c *Client) classify(res *resty.Response) error {
	code := res.StatusCode()
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrSessionExpired, code)
	}

	// redirects are followed, so a bounce to the login endpoint shows
	// up as the final request URL
	if raw := res.RawResponse; raw != nil && raw.Request != nil {
		finalPath := strings.ToLower(raw.Request.URL.Path)
		if strings.Contains(finalPath, "login") {
			return fmt.Errorf("%w: redirected to %s", ErrSessionExpired, raw.Request.URL)
		}
	}

	body := res.Body()
	if isLoginPage(body) {
		return fmt.Errorf("%w: login form detected in response", ErrSessionExpired)
	}

	if code != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRemote, code)
	}

	if len(body) < c.opts.MinPageBytes {
		return fmt.Errorf(
			"%w: response of %d bytes is below the plausible authenticated page size",
			ErrSessionExpired, len(body),
		)
	}
	return nil
}

// a page mentioning the login endpoint is only expired if it carries an
// actual login form instead of the authenticated content; authenticated
// pages link back to the login page too
func isLoginPage(body []byte) bool {
	if bytes.Contains(body, []byte(authContentMarker)) || bytes.Contains(body, []byte(authFormMarker)) {
		return false
	}
	if !bytes.Contains(body, []byte(loginPageMarker)) && !bytes.Contains(body, []byte("login.jsp")) {
		return false
	}
	return bytes.Contains(body, []byte(usernameInputMarker)) ||
		bytes.Contains(body, []byte(passwordInputMarker))
}

func (c *Client) refreshDaemon(ctx context.Context) {
	ticker := time.NewTicker(c.opts.RefreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := c.Login(ctx)
			if err != nil {
				// swallowed: the next tick or the next demand-triggered
				// login will try again
				slog.ErrorContext(ctx, "scheduled relogin failed", "err", err)
			}
		}
	}
}

func (c *Client) keepAliveDaemon(ctx context.Context) {
	ticker := time.NewTicker(c.opts.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.KeepAlive(ctx)
			if err != nil {
				slog.WarnContext(ctx, "keep-alive failed", "err", err)
			}
		}
	}
}
