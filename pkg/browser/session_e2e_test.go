//go:build e2e

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!doctype html>
<html><head><title>t</title><script>var s = "hidden text";</script></head>
<body>
  <h1>Title<span>twice</span></h1>
  <p>twice</p>
  <div style="display:none">invisible</div>
  <label><svg width="1" height="1"></svg> 起始金额</label>
</body></html>`

func newTestSession(t *testing.T) (*Session, *Page, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Bin = os.Getenv("CHROME_BIN")
	cfg.Timeout = 3 * time.Second
	cfg.VisibleTimeout = time.Second

	ctx := context.Background()
	s, err := Launch(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	p, err := s.OpenPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, srv.URL))

	return s, p, srv.URL
}

func TestPage_WaitVisibleText(t *testing.T) {
	_, p, _ := newTestSession(t)
	ctx := context.Background()

	n, err := p.WaitVisibleText(ctx, "起始金额", false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.WaitVisibleText(ctx, "twice", false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.WaitVisibleText(ctx, "twice", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPage_WaitVisibleText_Timeout(t *testing.T) {
	_, p, _ := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := p.WaitVisibleText(ctx, "hidden text", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPage_WaitVisibleText_SessionBound(t *testing.T) {
	_, p, _ := newTestSession(t)

	start := time.Now()
	_, err := p.WaitVisibleText(context.Background(), "invisible", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestPage_Screenshot(t *testing.T) {
	_, p, _ := newTestSession(t)

	path := filepath.Join(t.TempDir(), "nested", "shot.png")
	require.NoError(t, p.Screenshot(context.Background(), path, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSession_CloseOnce(t *testing.T) {
	s, _, _ := newTestSession(t)

	first := s.Close()
	assert.Equal(t, first, s.Close())

	_, err := s.OpenPage(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
