package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeController struct {
	mu    sync.Mutex
	value int64
	calls []logic.Direction
	err   error
}

func (c *fakeController) Control(dir logic.Direction) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.calls = append(c.calls, dir)
	switch dir {
	case logic.DirectionIncrease:
		c.value++
	case logic.DirectionDecrease:
		c.value--
	case logic.DirectionReset:
		c.value = 0
	}
	return c.value, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *fakeController) {
	t.Helper()
	tr := status.NewTracker(start, status.Config{
		DebounceMs:              150,
		SimultaneousThresholdMs: 100,
		Broker:                  "tcp://broker:1883",
		Store:                   "memory",
	})
	ctl := &fakeController{}
	ts := httptest.NewServer(New(":0", tr, ctl).Handler())
	t.Cleanup(ts.Close)
	return ts, tr, ctl
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexJSON(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetValue(5, start.Add(time.Minute), logic.DirectionIncrease)
	tr.Update(true, logic.EventCounts{Increase: 5, Dropped: 2})

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.Equal(t, int64(5), sj.Status.Value)
	assert.Equal(t, "INCREASE", sj.Status.LastEvent)
	assert.True(t, sj.Status.Observing)
	assert.Equal(t, 2, sj.Status.Volume.Dropped)
	assert.Equal(t, "memory", sj.Status.Config.Store)
	assert.Empty(t, sj.Status.Event)
}

func TestIndexHTML(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetValue(42, start, logic.DirectionIncrease)

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, `<div id="value" aria-label="Counter">42</div>`)
		assert.Contains(t, body, `action="/api/increment"`)
		assert.Contains(t, body, `action="/api/decrement"`)
		assert.Contains(t, body, `action="/api/reset"`)
		assert.Contains(t, body, "tcp://broker:1883")
	}
}

func TestIndexHTMLThresholdDisabled(t *testing.T) {
	tr := status.NewTracker(start, status.Config{DebounceMs: 150})
	ts := httptest.NewServer(New(":0", tr, &fakeController{}).Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, body, "disabled")
}

func TestUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControlEndpoints(t *testing.T) {
	ts, _, ctl := newTestServer(t)

	cases := []struct {
		path string
		want int64
	}{
		{"/api/increment", 1},
		{"/api/increment", 2},
		{"/api/decrement", 1},
		{"/api/reset", 0},
		{"/api/decrement", -1},
	}
	for _, tc := range cases {
		resp, err := http.Post(ts.URL+tc.path, "", nil)
		require.NoError(t, err)
		var v ValueJSON
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, tc.path)
		assert.Equal(t, tc.want, v.Value, tc.path)
	}

	assert.Equal(t, []logic.Direction{
		logic.DirectionIncrease,
		logic.DirectionIncrease,
		logic.DirectionDecrease,
		logic.DirectionReset,
		logic.DirectionDecrease,
	}, ctl.calls)
}

func TestControlRejectsGet(t *testing.T) {
	ts, _, ctl := newTestServer(t)

	resp, _ := get(t, ts.URL+"/api/increment")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	assert.Empty(t, ctl.calls)
}

func TestControlError(t *testing.T) {
	ts, _, ctl := newTestServer(t)
	ctl.err = errors.New("store unavailable")

	resp, err := http.Post(ts.URL+"/api/reset", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "store unavailable")
}

func TestControlFormRedirects(t *testing.T) {
	ts, _, ctl := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Post(ts.URL+"/api/increment",
		"application/x-www-form-urlencoded",
		strings.NewReader(url.Values{"return": {"html"}}.Encode()))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, []logic.Direction{logic.DirectionIncrease}, ctl.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestStateChangeReflected(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")
	assert.Contains(t, body, `"observing": false`)

	tr.Update(true, logic.EventCounts{})
	tr.SetMQTTConnected(true)

	_, body = get(t, ts.URL+"/index.json")
	assert.Contains(t, body, `"observing": true`)
	assert.Contains(t, body, `"connected": true`)
}
