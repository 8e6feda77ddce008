package vinnustund

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const (
	testUser = "starfsmadur1"
	testPass = "lykilord123"
)

// fakeSite emulates the login and timesheet endpoints. It issues a fresh
// cookie triple per accepted login and only serves timesheet data to the
// most recently issued JSESSIONID; everything else gets the login page.
type fakeSite struct {
	server *httptest.Server

	mu           sync.Mutex
	reject       bool
	dataStatus   int
	dataBody     []byte
	issuedToken  string
	logins       int
	lastLogin    url.Values
	lastDataForm url.Values

	loginGets  atomic.Int32
	loginPosts atomic.Int32
	dataGets   atomic.Int32
	dataPosts  atomic.Int32
	rootGets   atomic.Int32

	loginsInFlight    atomic.Int32
	maxLoginsInFlight atomic.Int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{}

	mux := http.NewServeMux()
	mux.HandleFunc(defaultLoginPath, s.handleLogin)
	mux.HandleFunc(defaultTimesheetPath, s.handleTimesheet)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.rootGets.Add(1)
		fmt.Fprint(w, "<html><body><h1>Vinnustund</h1><p>Forsíða</p></body></html>")
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeSite) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.loginGets.Add(1)
		w.Write(loginFixture)
		return
	}

	s.loginPosts.Add(1)
	cur := s.loginsInFlight.Add(1)
	for {
		max := s.maxLoginsInFlight.Load()
		if cur <= max || s.maxLoginsInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	defer s.loginsInFlight.Add(-1)

	_ = r.ParseForm()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogin = r.PostForm

	if s.reject || r.PostFormValue("username") != testUser || r.PostFormValue("password") != testPass {
		// wrong credentials re-render the login form without cookies
		w.Write(loginFixture)
		return
	}

	s.logins++
	s.issuedToken = fmt.Sprintf("jsess-%d", s.logins)
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: s.issuedToken, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "sessionPersist", Value: fmt.Sprintf("persist-%d", s.logins), Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "TS01780571", Value: fmt.Sprintf("gw-%d", s.logins), Path: "/"})
	fmt.Fprint(w, "<html><body>Velkomin</body></html>")
}

func (s *fakeSite) handleTimesheet(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.dataPosts.Add(1)
		_ = r.ParseForm()
	} else {
		s.dataGets.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Method == http.MethodPost {
		s.lastDataForm = r.PostForm
	}

	if s.dataStatus != 0 {
		w.WriteHeader(s.dataStatus)
		fmt.Fprint(w, "<html><body>villa</body></html>")
		return
	}

	cookie, err := r.Cookie("JSESSIONID")
	if err != nil || s.issuedToken == "" || cookie.Value != s.issuedToken {
		w.Write(loginFixture)
		return
	}

	if s.dataBody != nil {
		w.Write(s.dataBody)
		return
	}
	w.Write(timesheetFixture)
}

func (s *fakeSite) setReject(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = v
}

// revoke invalidates the issued session server-side, as an idle timeout
// would
func (s *fakeSite) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedToken = ""
}

func (s *fakeSite) setDataStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataStatus = code
}

func (s *fakeSite) setDataBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataBody = body
}

func newTestClient(t *testing.T, site *fakeSite, mutate ...func(*ClientOptions)) *Client {
	t.Helper()
	telemetry.SetupForTesting(t, "scrapers/vinnustund")
	opts := ClientOptions{
		BaseUrl:      site.server.URL,
		Username:     testUser,
		Password:     testPass,
		MinPageBytes: 1,
	}
	for _, m := range mutate {
		m(&opts)
	}
	client, err := NewClient(context.Background(), opts)
	require.NoError(t, err)
	return client
}

func TestLoginCapturesSessionCookies(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	require.Nil(t, client.Session())

	sess, err := client.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, "jsess-1", sess.Token)
	require.Equal(t, "persist-1", sess.Identity)
	require.Equal(t, "gw-1", sess.Gateway)
	require.False(t, sess.LoginAt.IsZero())
	require.Same(t, sess, client.Session())

	// the login page's generated hidden fields are echoed alongside the
	// credentials
	site.mu.Lock()
	form := site.lastLogin
	site.mu.Unlock()
	require.Equal(t, "abc123token", form.Get("org.apache.struts.taglib.html.TOKEN"))
	require.Equal(t, "vs-9f8e7d", form.Get("vstoken"))
	require.Equal(t, "97", form.Get("bgid"))
	require.Equal(t, testUser, form.Get("username"))
	require.Equal(t, testPass, form.Get("password"))
}

func TestLoginRejectedLeavesSessionUntouched(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	site.setReject(true)
	_, err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrCredentialsRejected)
	require.Nil(t, client.Session())

	site.setReject(false)
	prev, err := client.Login(context.Background())
	require.NoError(t, err)

	site.setReject(true)
	_, err = client.Login(context.Background())
	require.ErrorIs(t, err, ErrCredentialsRejected)
	require.Same(t, prev, client.Session())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site, func(o *ClientOptions) {
		o.Password = "rangt"
	})

	_, err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrCredentialsRejected)
}

func TestEnsureValidLogsInExactlyOnce(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.EnsureValid(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, site.loginPosts.Load())
	require.EqualValues(t, 1, site.maxLoginsInFlight.Load())

	// with a valid session the gate is a no-op
	require.NoError(t, client.EnsureValid(context.Background()))
	require.EqualValues(t, 1, site.loginPosts.Load())
}

func TestConcurrentLoginsNeverOverlap(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Login(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 4, site.loginPosts.Load())
	require.EqualValues(t, 1, site.maxLoginsInFlight.Load())
}

func TestFetchShiftPage(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	_, err := client.Login(context.Background())
	require.NoError(t, err)

	page, err := client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.NoError(t, err)
	require.EqualValues(t, 1, site.dataGets.Load())
	require.EqualValues(t, 1, site.dataPosts.Load())

	records, err := ParseShiftTable(page)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// the form's hidden fields are echoed with the date range on top
	site.mu.Lock()
	form := site.lastDataForm
	site.mu.Unlock()
	require.Equal(t, "01.01.2026", form.Get("timabilFra"))
	require.Equal(t, "31.01.2026", form.Get("timabilTil"))
	require.Equal(t, "true", form.Get("sj"))
	require.Equal(t, "true", form.Get("showBak"))
	require.Equal(t, "f00df00df00d", form.Get("org.apache.struts.taglib.html.TOKEN"))
}

func TestFetchShiftPageWithoutSession(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	_, err := client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.ErrorIs(t, err, ErrSessionExpired)
	require.EqualValues(t, 0, site.dataGets.Load())

	// the failure marks the session invalid so the gate relogins
	require.NoError(t, client.EnsureValid(context.Background()))
	require.EqualValues(t, 1, site.loginPosts.Load())
}

func TestFetchShiftPageExpiredSession(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	_, err := client.Login(context.Background())
	require.NoError(t, err)

	site.revoke()
	_, err = client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.ErrorIs(t, err, ErrSessionExpired)

	// relogin through the gate, then the fetch works again
	require.NoError(t, client.EnsureValid(context.Background()))
	require.EqualValues(t, 2, site.loginPosts.Load())

	page, err := client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.NoError(t, err)
	records, err := ParseShiftTable(page)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestFetchShiftPageClassification(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)
	_, err := client.Login(context.Background())
	require.NoError(t, err)

	site.setDataStatus(http.StatusForbidden)
	_, err = client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.ErrorIs(t, err, ErrSessionExpired)

	site.setDataStatus(http.StatusInternalServerError)
	_, err = client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.ErrorIs(t, err, ErrRemote)
	site.setDataStatus(0)
}

func TestFetchShiftPageTruncatedResponse(t *testing.T) {
	site := newFakeSite(t)
	// default threshold: an implausibly small authenticated page is an
	// expired session, not data
	client := newTestClient(t, site, func(o *ClientOptions) {
		o.MinPageBytes = 0
	})
	_, err := client.Login(context.Background())
	require.NoError(t, err)

	site.setDataBody([]byte("<html><body>stub</body></html>"))
	_, err = client.FetchShiftPage(context.Background(), "01.01.2026", "31.01.2026")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestIsAuthenticated(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	require.False(t, client.IsAuthenticated(context.Background()))
	require.EqualValues(t, 0, site.dataGets.Load())

	_, err := client.Login(context.Background())
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated(context.Background()))

	site.revoke()
	require.False(t, client.IsAuthenticated(context.Background()))
}

func TestKeepAlive(t *testing.T) {
	site := newFakeSite(t)
	client := newTestClient(t, site)

	err := client.KeepAlive(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	require.EqualValues(t, 0, site.rootGets.Load())

	_, err = client.Login(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.KeepAlive(context.Background()))
	require.EqualValues(t, 1, site.rootGets.Load())
}

func TestRefreshDaemon(t *testing.T) {
	site := newFakeSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := NewClient(ctx, ClientOptions{
		BaseUrl:       site.server.URL,
		Username:      testUser,
		Password:      testPass,
		MinPageBytes:  1,
		RefreshPeriod: 40 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return site.loginPosts.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestKeepAliveDaemon(t *testing.T) {
	site := newFakeSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewClient(ctx, ClientOptions{
		BaseUrl:           site.server.URL,
		Username:          testUser,
		Password:          testPass,
		MinPageBytes:      1,
		KeepAliveInterval: 40 * time.Millisecond,
	})
	require.NoError(t, err)
	_, err = client.Login(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return site.rootGets.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}
