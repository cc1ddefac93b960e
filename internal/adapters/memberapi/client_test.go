package memberapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/domain/member"
)

// capturedRequest records what the fake endpoint received.
type capturedRequest struct {
	Method      string
	Function    string
	User        string
	ContentType string
	Body        string
}

// newFakeEndpoint starts a server that records the request and replies with status and body.
func newFakeEndpoint(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*got = capturedRequest{
			Method:      r.Method,
			Function:    r.URL.Query().Get("function"),
			User:        r.URL.Query().Get("user"),
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(data),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestClient(t *testing.T, srv *httptest.Server, collector *perf.Collector) *Client {
	t.Helper()
	c, err := NewClient(srv.URL+"/users.php", srv.Client(), collector)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

const annJSON = `{"id":1,"name":"Ann","email":"a@x.com","company":{"name":"Acme"}}`

var ann = member.Member{ID: 1, Name: "Ann", Email: "a@x.com", Company: member.Company{Name: "Acme"}}

// TestNewClient_RejectsBadURLs verifies URL validation.
func TestNewClient_RejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "users.php", "ftp://host/users.php", "http:///users.php", "://bad"} {
		if _, err := NewClient(raw, nil, nil); err == nil {
			t.Errorf("NewClient(%q) error = nil, want error", raw)
		}
	}
}

// TestClient_RequestShapes verifies each operation's method, function and user parameters.
// TestNewClient_NoOwnTimeout verifies the default client leaves deadlines to the caller's context.
func TestNewClient_NoOwnTimeout(t *testing.T) {
	c, err := NewClient("http://localhost/users.php", nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.httpClient.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", c.httpClient.Timeout)
	}
}

// TestClient_SlowResponseCompletes verifies a slow answer is awaited rather than cut off.
func TestClient_SlowResponseCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":7,"name":"Ann","email":"a@x.com","company":{"name":"Acme"}}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/users.php", nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	m, err := c.ReadOne(context.Background(), 7)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if m.ID != 7 {
		t.Errorf("ID = %d, want 7", m.ID)
	}
}

func TestClient_RequestShapes(t *testing.T) {
	tests := []struct {
		name         string
		respBody     string
		call         func(c *Client) error
		wantMethod   string
		wantFunction string
		wantUser     string
		wantJSON     bool
	}{
		{
			name:     "readall",
			respBody: "[" + annJSON + "]",
			call: func(c *Client) error {
				got, err := c.ReadAll(context.Background())
				if err == nil && (len(got) != 1 || got[0] != ann) {
					t.Errorf("ReadAll() = %+v", got)
				}
				return err
			},
			wantMethod: http.MethodGet, wantFunction: "readall",
		},
		{
			name:     "read",
			respBody: annJSON,
			call: func(c *Client) error {
				got, err := c.ReadOne(context.Background(), 1)
				if err == nil && got != ann {
					t.Errorf("ReadOne() = %+v", got)
				}
				return err
			},
			wantMethod: http.MethodGet, wantFunction: "read", wantUser: "1",
		},
		{
			name:     "create",
			respBody: annJSON,
			call: func(c *Client) error {
				_, err := c.Create(context.Background(), ann)
				return err
			},
			wantMethod: http.MethodPost, wantFunction: "create", wantJSON: true,
		},
		{
			name:     "update",
			respBody: annJSON,
			call: func(c *Client) error {
				_, err := c.Update(context.Background(), 1, ann)
				return err
			},
			wantMethod: http.MethodPut, wantFunction: "update", wantUser: "1", wantJSON: true,
		},
		{
			name:     "delete",
			respBody: annJSON,
			call: func(c *Client) error {
				got, err := c.Delete(context.Background(), 1)
				if err == nil && got.ID != 1 {
					t.Errorf("Delete() = %+v", got)
				}
				return err
			},
			wantMethod: http.MethodDelete, wantFunction: "delete", wantUser: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newFakeEndpoint(t, http.StatusOK, tt.respBody)
			c := newTestClient(t, srv, nil)

			if err := tt.call(c); err != nil {
				t.Fatalf("call error: %v", err)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", got.Method, tt.wantMethod)
			}
			if got.Function != tt.wantFunction {
				t.Errorf("function = %q, want %q", got.Function, tt.wantFunction)
			}
			if got.User != tt.wantUser {
				t.Errorf("user = %q, want %q", got.User, tt.wantUser)
			}
			if tt.wantJSON {
				if got.ContentType != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", got.ContentType)
				}
				var sent member.Member
				if err := json.Unmarshal([]byte(got.Body), &sent); err != nil {
					t.Fatalf("request body is not a member: %v (%q)", err, got.Body)
				}
				if sent != ann {
					t.Errorf("sent body = %+v, want %+v", sent, ann)
				}
			} else if got.Body != "" {
				t.Errorf("unexpected request body %q", got.Body)
			}
		})
	}
}

// TestClient_ReadAll_EmptyArray verifies an empty list decodes to a non-nil empty slice.
func TestClient_ReadAll_EmptyArray(t *testing.T) {
	srv, _ := newFakeEndpoint(t, http.StatusOK, "[]")
	c := newTestClient(t, srv, nil)

	got, err := c.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadAll() = %#v, want empty slice", got)
	}
}

// TestClient_NonSuccessStatus verifies any non-2xx status yields RequestFailedError, regardless of body.
func TestClient_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		srv, _ := newFakeEndpoint(t, status, annJSON)
		c := newTestClient(t, srv, nil)

		_, err := c.ReadOne(context.Background(), 1)
		var rf *RequestFailedError
		if !errors.As(err, &rf) {
			t.Fatalf("status %d: error = %v, want RequestFailedError", status, err)
		}
		if rf.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", rf.StatusCode, status)
		}
		if code, ok := StatusOf(err); !ok || code != status {
			t.Errorf("StatusOf() = %d, %v", code, ok)
		}
		if !IsRemote(err) {
			t.Errorf("IsRemote(%v) = false", err)
		}
	}
}

// TestClient_NetworkError verifies a transport failure yields NetworkError.
func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, nil)
	srv.Close()

	_, err := c.ReadAll(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if ne.Op != "memberapi.readall" {
		t.Errorf("Op = %q", ne.Op)
	}
	if UserMessage(err) != "Could not reach the member service" {
		t.Errorf("UserMessage() = %q", UserMessage(err))
	}
}

// TestClient_DecodeError verifies a 2xx response with an invalid body is reported as ErrDecode.
func TestClient_DecodeError(t *testing.T) {
	srv, _ := newFakeEndpoint(t, http.StatusOK, "<html>oops</html>")
	c := newTestClient(t, srv, nil)

	_, err := c.ReadAll(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
}

// TestClient_InvalidIDNeverCallsRemote verifies bad ids are rejected locally.
func TestClient_InvalidIDNeverCallsRemote(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()
	c := newTestClient(t, srv, nil)

	if _, err := c.ReadOne(context.Background(), 0); !errors.Is(err, member.ErrInvalidID) {
		t.Errorf("ReadOne(0) error = %v", err)
	}
	if _, err := c.Update(context.Background(), -1, ann); !errors.Is(err, member.ErrInvalidID) {
		t.Errorf("Update(-1) error = %v", err)
	}
	if _, err := c.Delete(context.Background(), 0); !errors.Is(err, member.ErrInvalidID) {
		t.Errorf("Delete(0) error = %v", err)
	}
	if calls != 0 {
		t.Errorf("remote calls = %d, want 0", calls)
	}
}

// TestClient_SingleAttempt verifies a failing call is not retried.
func TestClient_SingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newTestClient(t, srv, nil)

	if _, err := c.Create(context.Background(), ann); err == nil {
		t.Fatal("Create() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestClient_RecordsTiming verifies calls are recorded to the collector with their status.
func TestClient_RecordsTiming(t *testing.T) {
	srv, _ := newFakeEndpoint(t, http.StatusNotFound, "")
	collector := perf.NewCollector(10)
	c := newTestClient(t, srv, collector)

	c.ReadOne(context.Background(), 5)

	if collector.TotalRecorded() != 1 {
		t.Fatalf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
	snap := collector.Snapshot(time.Time{}, 10)
	if len(snap.SlowestCalls) != 1 || snap.SlowestCalls[0].Path != "memberapi.read" {
		t.Errorf("SlowestCalls = %+v", snap.SlowestCalls)
	}
	if snap.CallFailures != 1 {
		t.Errorf("CallFailures = %d, want 1", snap.CallFailures)
	}
}

// TestClient_KeepsExistingQuery verifies extra query parameters on the base URL survive.
func TestClient_KeepsExistingQuery(t *testing.T) {
	c, err := NewClient("http://example.test/api/users.php?key=abc", nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got := c.requestURL("read", 3)
	want := "http://example.test/api/users.php?function=read&key=abc&user=3"
	if got != want {
		t.Errorf("requestURL() = %q, want %q", got, want)
	}
}
