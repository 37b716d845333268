package web_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/db"
	"github.com/vbonduro/staydesk/internal/docstore/local"
	"github.com/vbonduro/staydesk/internal/service"
	"github.com/vbonduro/staydesk/internal/store"
	"github.com/vbonduro/staydesk/internal/web"
	"github.com/vbonduro/staydesk/internal/web/templates"
)

const testPassword = "correct horse"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// fixedCodes hands out booking codes in order, repeating the last one.
type fixedCodes struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *fixedCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := min(g.calls, len(g.codes)-1)
	g.calls++
	return g.codes[i], nil
}

type testApp struct {
	srv *httptest.Server
	db  *sql.DB
	svc web.Services
}

// newTestServer wires a real web.Server over an in-memory database and a
// temporary document directory.
func newTestServer(t *testing.T, opts web.Options, codes ...string) *testApp {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)

	files, err := local.NewLocalDocStore(t.TempDir())
	require.NoError(t, err)

	if len(codes) == 0 {
		codes = []string{"7xK3mPq"}
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	propertyStore := store.NewPropertyStore(database)
	guestStore := store.NewGuestStore(database)
	stayStore := store.NewStayStore(database)
	documentStore := store.NewDocumentStore(database)
	codeStore := store.NewCodeStore(database)
	rules := service.NewHouseRulesService(store.NewHouseRulesStore(database), logger)

	svc := web.Services{
		Auth:       service.NewAuthService(store.NewUserStore(database), auth.NewTokenIssuer("test-secret", time.Hour), logger),
		Properties: service.NewPropertyService(propertyStore, documentStore, files, logger),
		Guests:     service.NewGuestService(guestStore, logger),
		Stays:      service.NewStayService(stayStore, codeStore, guestStore, documentStore, &fixedCodes{codes: codes}, "http://stay.test/", opts.Location, logger),
		Rules:      rules,
		Documents:  service.NewDocumentService(documentStore, files, logger),
		Public:     service.NewPublicService(codeStore, stayStore, guestStore, propertyStore, rules, logger),
	}

	if opts.SessionTTL == 0 {
		opts.SessionTTL = time.Hour
	}
	opts.DB = database
	srv := httptest.NewServer(web.NewServer(svc, templates.FS, opts, logger))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return &testApp{srv: srv, db: database, svc: svc}
}

// newUser creates a user who is a member of a new property of the given
// name, and returns the property id.
func (a *testApp) newUser(t *testing.T, username, property string) int64 {
	t.Helper()
	u, err := a.svc.Auth.CreateUser(context.Background(), service.UserInput{Username: username, Password: testPassword})
	require.NoError(t, err)
	p, err := a.svc.Properties.Create(context.Background(), u.ID, service.PropertyInput{Name: property})
	require.NoError(t, err)
	return p.ID
}

// client returns a cookie-keeping client that does not follow redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) login(t *testing.T, username string) *http.Client {
	t.Helper()
	c := a.client(t)
	resp, err := c.PostForm(a.srv.URL+"/login", url.Values{"username": {username}, "password": {testPassword}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/properties", resp.Header.Get("Location"))
	return c
}

func do(t *testing.T, c *http.Client, method, target string, form url.Values, header http.Header) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

var jsonHeader = http.Header{"Accept": {"application/json"}}

type stayJSON struct {
	ID          int64  `json:"id"`
	PropertyID  int64  `json:"property_id"`
	GuestCount  int    `json:"guest_count"`
	PhoneNumber string `json:"phone_number"`
	FormFilled  bool   `json:"form_filled"`
	TermsAgreed bool   `json:"terms_agreed"`
	Guests      []struct {
		Name string `json:"name"`
	} `json:"guests"`
	Code *struct {
		Code          string `json:"code"`
		AccessedCount int64  `json:"accessed_count"`
	} `json:"booking_code"`
	PublicURL string `json:"public_url"`
}

func (a *testApp) stayURL(pid, id int64) string {
	return a.srv.URL + "/properties/" + strconv.FormatInt(pid, 10) + "/stays/" + strconv.FormatInt(id, 10)
}

func (a *testApp) createStay(t *testing.T, c *http.Client, pid int64) stayJSON {
	t.Helper()
	resp, body := do(t, c, http.MethodPost, a.srv.URL+"/properties/"+strconv.FormatInt(pid, 10)+"/stays",
		url.Values{"check_in_date": {"2026-10-20"}, "check_out_date": {"2026-10-23"}, "guest_count": {"2"}}, jsonHeader)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var st stayJSON
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	return st
}

func (a *testApp) issueCode(t *testing.T, c *http.Client, pid, stayID int64) string {
	t.Helper()
	resp, body := do(t, c, http.MethodPost, a.stayURL(pid, stayID)+"/code", url.Values{}, jsonHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var out struct {
		Code struct {
			Code string `json:"code"`
		} `json:"code"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "http://stay.test/b/"+out.Code.Code+"/", out.URL)
	return out.Code.Code
}

func (a *testApp) getStay(t *testing.T, c *http.Client, pid, stayID int64) stayJSON {
	t.Helper()
	resp, body := do(t, c, http.MethodGet, a.srv.URL+"/api/v1/properties/"+strconv.FormatInt(pid, 10)+"/stays/"+strconv.FormatInt(stayID, 10), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var st stayJSON
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	return st
}

func TestIntegration_RequiresLogin(t *testing.T) {
	app := newTestServer(t, web.Options{})
	c := app.client(t)

	resp, _ := do(t, c, http.MethodGet, app.srv.URL+"/properties", nil, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fproperties", resp.Header.Get("Location"))

	resp, body := do(t, c, http.MethodGet, app.srv.URL+"/api/v1/properties/1/stays/1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"authentication required"}`, body)

	resp, _ = do(t, c, http.MethodGet, app.srv.URL+"/properties/1", nil, http.Header{"Hx-Request": {"true"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("HX-Redirect"))
}

func TestIntegration_Login(t *testing.T) {
	app := newTestServer(t, web.Options{})
	app.newUser(t, "meera", "Lakeview Homestay")

	resp, body := do(t, app.client(t), http.MethodPost, app.srv.URL+"/login",
		url.Values{"username": {"meera"}, "password": {"wrong password"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password.")

	c := app.login(t, "meera")
	resp, body = do(t, c, http.MethodGet, app.srv.URL+"/properties", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Lakeview Homestay")

	resp, _ = do(t, c, http.MethodPost, app.srv.URL+"/logout", url.Values{}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = do(t, c, http.MethodGet, app.srv.URL+"/properties", nil, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestIntegration_TenantIsolation(t *testing.T) {
	app := newTestServer(t, web.Options{})
	ownPID := app.newUser(t, "meera", "Lakeview Homestay")
	otherPID := app.newUser(t, "arjun", "Hilltop Cottage")

	meera := app.login(t, "meera")
	arjun := app.login(t, "arjun")
	otherStay := app.createStay(t, arjun, otherPID)

	for _, path := range []string{
		"/properties/" + strconv.FormatInt(otherPID, 10),
		"/properties/" + strconv.FormatInt(otherPID, 10) + "/stays",
		"/properties/" + strconv.FormatInt(otherPID, 10) + "/guests/search?q=a",
		"/api/v1/properties/" + strconv.FormatInt(otherPID, 10) + "/stays/" + strconv.FormatInt(otherStay.ID, 10),
	} {
		resp, _ := do(t, meera, http.MethodGet, app.srv.URL+path, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	// A stay id of another property is not reachable through one's own.
	resp, _ := do(t, meera, http.MethodGet, app.srv.URL+"/api/v1/properties/"+strconv.FormatInt(ownPID, 10)+"/stays/"+strconv.FormatInt(otherStay.ID, 10), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, meera, http.MethodDelete, app.stayURL(otherPID, otherStay.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, otherStay.ID, app.getStay(t, arjun, otherPID, otherStay.ID).ID)
}

func TestIntegration_GuestSelfService(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")

	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)
	require.Equal(t, "7xK3mPq", code)

	guest := app.client(t)
	resp, body := do(t, guest, http.MethodGet, app.srv.URL+"/b/7xK3mPq/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome to Lakeview Homestay")
	assert.Contains(t, body, "Terms and Conditions")

	resp, body = do(t, guest, http.MethodPost, app.srv.URL+"/b/7xK3mPq/", url.Values{
		"guest_names":  {"A. Sharma", ""},
		"phone_number": {"9876543210"},
		"email":        {"a.sharma@example.com"},
		"coming_from":  {"Pune"},
		"terms_agreed": {"true"},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "Thank you!")

	got := app.getStay(t, admin, pid, st.ID)
	assert.True(t, got.FormFilled)
	assert.True(t, got.TermsAgreed)
	assert.Equal(t, "9876543210", got.PhoneNumber)
	require.Len(t, got.Guests, 1)
	assert.Equal(t, "A. Sharma", got.Guests[0].Name)
	require.NotNil(t, got.Code)
	assert.Equal(t, int64(1), got.Code.AccessedCount, "the submission itself is not an access")

	// A filled form is not overwritten.
	resp, body = do(t, guest, http.MethodPost, app.srv.URL+"/b/7xK3mPq/", url.Values{
		"guest_names":  {"Someone Else"},
		"phone_number": {"1111111111"},
		"terms_agreed": {"true"},
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "Already completed")
	assert.Equal(t, "9876543210", app.getStay(t, admin, pid, st.ID).PhoneNumber)

	resp, body = do(t, guest, http.MethodGet, app.srv.URL+"/b/7xK3mPq/", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Already completed")
	assert.Equal(t, int64(2), app.getStay(t, admin, pid, st.ID).Code.AccessedCount)
}

func TestIntegration_GuestFormValidation(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)
	app.issueCode(t, admin, pid, st.ID)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"terms not accepted", url.Values{"guest_names": {"A. Sharma"}}, "The terms must be accepted"},
		{"no guests", url.Values{"terms_agreed": {"true"}}, "Guest names needs at least 1 entry"},
		{"bad email", url.Values{"guest_names": {"A. Sharma"}, "terms_agreed": {"true"}, "email": {"not-an-email"}}, "Email must be a valid email address"},
		{"undecodable count", url.Values{"guest_names": {"A. Sharma"}, "terms_agreed": {"true"}, "guest_count": {"many"}}, "Number of guests is invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app.client(t), http.MethodPost, app.srv.URL+"/b/7xK3mPq/", tt.form, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Contains(t, body, tt.want)
		})
	}
	assert.False(t, app.getStay(t, admin, pid, st.ID).FormFilled)
}

func TestIntegration_UnknownCode(t *testing.T) {
	app := newTestServer(t, web.Options{})

	for _, code := range []string{"zzzzzzz", "0OIl000", "short"} {
		resp, body := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/"+code+"/", nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, code)
		assert.Contains(t, body, "Invalid booking code")

		resp, _ = do(t, app.client(t), http.MethodPost, app.srv.URL+"/b/"+code+"/",
			url.Values{"guest_names": {"A. Sharma"}, "terms_agreed": {"true"}}, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, code)
	}
}

func TestIntegration_ExpiredCode(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)

	_, err := app.db.Exec(`UPDATE booking_codes SET expires_at = ? WHERE code = ?`, time.Now().UTC().Add(-time.Minute), code)
	require.NoError(t, err)

	resp, body := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/"+code+"/", nil, nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Contains(t, body, "expired")

	resp, _ = do(t, app.client(t), http.MethodPost, app.srv.URL+"/b/"+code+"/",
		url.Values{"guest_names": {"A. Sharma"}, "terms_agreed": {"true"}}, nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	got := app.getStay(t, admin, pid, st.ID)
	assert.False(t, got.FormFilled)
	assert.Equal(t, int64(0), got.Code.AccessedCount)
}

func TestIntegration_ConcurrentViewsAreAllCounted(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)

	const views = 10
	var wg sync.WaitGroup
	statuses := make([]int, views)
	for i := range views {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(app.srv.URL + "/b/" + code + "/")
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int64(views), app.getStay(t, admin, pid, st.ID).Code.AccessedCount)
}

func TestIntegration_PublicRateLimit(t *testing.T) {
	app := newTestServer(t, web.Options{PublicRateLimit: 0.001, PublicRateBurst: 1})

	resp, _ := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/zzzzzzz/", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/zzzzzzz/", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestIntegration_ReissuedCodeReplacesOld(t *testing.T) {
	app := newTestServer(t, web.Options{}, "7xK3mPq", "Hn4tW9a")
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)

	assert.Equal(t, "7xK3mPq", app.issueCode(t, admin, pid, st.ID))
	assert.Equal(t, "Hn4tW9a", app.issueCode(t, admin, pid, st.ID))

	resp, _ := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/7xK3mPq/", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/Hn4tW9a/", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, admin, http.MethodDelete, app.stayURL(pid, st.ID)+"/code", nil, jsonHeader)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/Hn4tW9a/", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_CodePanelAndQR(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)

	resp, body := do(t, admin, http.MethodPost, app.stayURL(pid, st.ID)+"/code",
		url.Values{"expires_at": {"2099-01-01T12:00"}}, http.Header{"Hx-Request": {"true"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `id="code-panel"`)
	assert.Contains(t, body, "http://stay.test/b/7xK3mPq/")
	assert.Contains(t, body, "01 Jan 2099 12:00 UTC")

	resp, body = do(t, admin, http.MethodGet, app.stayURL(pid, st.ID)+"/code/qr.png", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, body = do(t, admin, http.MethodGet, app.stayURL(pid, st.ID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "7xK3mPq")
}

func TestIntegration_LegacyRoutes(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)
	base := app.srv.URL + "/properties/" + strconv.FormatInt(pid, 10)

	resp, body := do(t, admin, http.MethodGet, base+"/customer/"+strconv.FormatInt(st.ID, 10)+"/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got stayJSON
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, 2, got.GuestCount)

	resp, _ = do(t, admin, http.MethodGet, base+"/customers/", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, admin, http.MethodPost, base+"/customer/"+strconv.FormatInt(st.ID, 10)+"/delete/", url.Values{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, body)

	resp, _ = do(t, admin, http.MethodGet, base+"/customer/"+strconv.FormatInt(st.ID, 10)+"/", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_GuestsAndSearch(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	base := app.srv.URL + "/properties/" + strconv.FormatInt(pid, 10) + "/guests"

	for _, name := range []string{"A. Sharma", "R. Sharma", "K. Iyer"} {
		resp, body := do(t, admin, http.MethodPost, base, url.Values{"name": {name}}, http.Header{"Hx-Request": {"true"}})
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Contains(t, body, name)
	}

	resp, body := do(t, admin, http.MethodGet, base+"/search?q=sharma", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Guests []struct {
			Name string `json:"name"`
		} `json:"guests"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Len(t, out.Guests, 2)

	resp, _ = do(t, admin, http.MethodPost, base, url.Values{"name": {""}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIntegration_DocumentUpload(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	base := app.srv.URL + "/properties/" + strconv.FormatInt(pid, 10) + "/documents"

	upload := func(filename string, data []byte, fields map[string]string) (*http.Response, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, base, &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Accept", "application/json")
		resp, err := admin.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := upload("passport.png", pngHeader, map[string]string{"document_name": "Sharma passport", "document_type": "passport"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var doc struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		DocumentType string `json:"document_type"`
		MimeType     string `json:"mime_type"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "Sharma passport", doc.Name)
	assert.Equal(t, "passport", doc.DocumentType)
	assert.Equal(t, "image/png", doc.MimeType)

	resp, body = do(t, admin, http.MethodGet, base+"/"+strconv.FormatInt(doc.ID, 10)+"/file", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Sharma passport.png")
	assert.Equal(t, string(pngHeader), body)

	resp, body = do(t, admin, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sharma passport")

	resp, _ = upload("notes.txt", []byte("just some text"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, admin, http.MethodDelete, base+"/"+strconv.FormatInt(doc.ID, 10), nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, admin, http.MethodGet, base+"/"+strconv.FormatInt(doc.ID, 10)+"/file", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_HouseRules(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	target := app.srv.URL + "/properties/" + strconv.FormatInt(pid, 10) + "/house-rules"

	resp, body := do(t, admin, http.MethodGet, target, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Version 1")

	resp, body = do(t, admin, http.MethodPost, target,
		url.Values{"title": {"House Rules"}, "content": {"<p>No smoking.</p>"}}, http.Header{"Hx-Request": {"true"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"success":true,"message":"House rules updated successfully!","version":2}`, body)

	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)
	_, body = do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/"+code+"/", nil, nil)
	assert.Contains(t, body, "<p>No smoking.</p>")
}

func TestIntegration_HouseRulesAreSanitized(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	target := app.srv.URL + "/properties/" + strconv.FormatInt(pid, 10) + "/house-rules"

	content := `<p>ok</p><script>alert(document.cookie)</script><img src=x onerror=alert(1)>`
	resp, body := do(t, admin, http.MethodPost, target,
		url.Values{"title": {"House Rules"}, "content": {content}}, http.Header{"Hx-Request": {"true"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)

	_, editor := do(t, admin, http.MethodGet, target, nil, nil)
	_, public := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/"+code+"/", nil, nil)
	for name, page := range map[string]string{"editor": editor, "public": public} {
		assert.Contains(t, page, "<p>ok</p>", name)
		assert.NotContains(t, page, "alert(document.cookie)", name)
		assert.NotContains(t, page, "onerror", name)
	}
}

func TestIntegration_StoredHouseRulesAreSanitizedOnRender(t *testing.T) {
	app := newTestServer(t, web.Options{})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)
	code := app.issueCode(t, admin, pid, st.ID)

	resp, _ := do(t, admin, http.MethodGet, app.srv.URL+"/properties/"+strconv.FormatInt(pid, 10)+"/house-rules", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Rows written before content was sanitized on update.
	res, err := app.db.Exec(`UPDATE house_rules SET content = ? WHERE property_id = ?`,
		`<p>ok</p><script>alert(document.cookie)</script>`, pid)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, body := do(t, app.client(t), http.MethodGet, app.srv.URL+"/b/"+code+"/", nil, nil)
	assert.Contains(t, body, "<p>ok</p>")
	assert.NotContains(t, body, "alert(document.cookie)")
}

func TestIntegration_CodeExpiryInPropertyZone(t *testing.T) {
	app := newTestServer(t, web.Options{Location: time.FixedZone("IST", 5*3600+1800)})
	pid := app.newUser(t, "meera", "Lakeview Homestay")
	admin := app.login(t, "meera")
	st := app.createStay(t, admin, pid)

	resp, body := do(t, admin, http.MethodPost, app.stayURL(pid, st.ID)+"/code",
		url.Values{"expires_at": {"2099-01-01T18:00"}}, http.Header{"Hx-Request": {"true"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "01 Jan 2099 18:00 IST")
	assert.Contains(t, body, "Expires (IST, optional)")

	var expires time.Time
	require.NoError(t, app.db.QueryRow(`SELECT expires_at FROM booking_codes WHERE stay_id = ?`, st.ID).Scan(&expires))
	assert.True(t, expires.Equal(time.Date(2099, 1, 1, 12, 30, 0, 0, time.UTC)), expires.String())
}

func TestIntegration_Healthz(t *testing.T) {
	app := newTestServer(t, web.Options{})

	resp, body := do(t, app.client(t), http.MethodGet, app.srv.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
