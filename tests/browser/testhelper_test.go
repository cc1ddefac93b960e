package browser_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	web "memberdesk/internal/adapters/http"
	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/adapters/memberapi"
	"memberdesk/internal/adapters/storage"
	memberStore "memberdesk/internal/adapters/storage/member"
	"memberdesk/internal/adapters/usersphp"
	"memberdesk/internal/application/forms"
)

// testApp holds the running member service, the front-end and Playwright handles.
type testApp struct {
	BaseURL string
	API     *httptest.Server
	Store   *memberStore.SQLiteStore
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// newTestApp starts a seeded users.php service on a temp SQLite DB and the front-end against it.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	dsn := filepath.Join(t.TempDir(), "users.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}
	store := memberStore.NewSQLiteStore(storage.NewTimedDB(db, nil, 0))
	if _, err := usersphp.SeedDefaults(context.Background(), store); err != nil {
		t.Fatalf("failed to seed members: %v", err)
	}

	apiMux := http.NewServeMux()
	apiMux.Handle("/users.php", usersphp.NewHandler(store))
	apiSrv := httptest.NewServer(apiMux)

	collector := perf.NewCollector(1000)
	client, err := memberapi.NewClient(apiSrv.URL+"/users.php", &http.Client{Timeout: 5 * time.Second}, collector)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	webSrv := httptest.NewUnstartedServer(nil)
	host := webSrv.Listener.Addr().String()
	webSrv.Config.Handler = web.NewMux(web.Deps{
		API:       client,
		Forms:     forms.NewTracker(forms.DefaultTTL),
		Collector: collector,
	}, web.Options{
		CSRFKey:        []byte(strings.Repeat("t", 32)),
		RateLimit:      1000,
		TrustedOrigins: []string{host, strings.Replace(host, "127.0.0.1", "localhost", 1)},
	})
	webSrv.Start()

	pw, err := playwright.Run()
	if err != nil {
		webSrv.Close()
		apiSrv.Close()
		db.Close()
		t.Skipf("Playwright not available: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		webSrv.Close()
		apiSrv.Close()
		db.Close()
	})

	return &testApp{
		BaseURL: webSrv.URL,
		API:     apiSrv,
		Store:   store,
		PW:      pw,
		Browser: browser,
	}
}

// newPage creates a new browser page (tab) showing the member desk.
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })

	if _, err := page.Goto(a.BaseURL + "/"); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}
	waitVisible(t, page.Locator("#member-table"))
	return page
}

func waitVisible(t *testing.T, loc playwright.Locator) {
	t.Helper()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("element not visible: %v", err)
	}
}

func waitGone(t *testing.T, loc playwright.Locator) {
	t.Helper()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateDetached,
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("element still attached: %v", err)
	}
}

func textOf(t *testing.T, loc playwright.Locator) string {
	t.Helper()
	s, err := loc.TextContent()
	if err != nil {
		t.Fatalf("failed to read text: %v", err)
	}
	return strings.TrimSpace(s)
}

// fillForm fills the open member form and submits it.
func fillForm(t *testing.T, page playwright.Page, name, email, company string) {
	t.Helper()
	form := page.Locator("#member-form")
	waitVisible(t, form)
	for field, value := range map[string]string{"name": name, "email": email, "company": company} {
		if err := form.Locator("input[name=" + field + "]").Fill(value); err != nil {
			t.Fatalf("failed to fill %s: %v", field, err)
		}
	}
	if err := form.Locator("button[data-action=submit]").Click(); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
}
