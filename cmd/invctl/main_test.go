package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/internal/testsupport"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/config"
	"inventory_reports/platform/logger"
)

func newTestCLI(t *testing.T) (*cli, *testsupport.ReportService, *bytes.Buffer, string) {
	t.Helper()
	svc := testsupport.StartReportService(t)
	dir := t.TempDir()
	var out bytes.Buffer
	c := &cli{
		cfg: &config.Config{
			ReportServiceURL: svc.URL(),
			RequestTimeout:   5 * time.Second,
			DownloadDir:      dir,
			DefaultFormat:    "pdf",
		},
		log: logger.Discard(),
		out: &out,
	}
	return c, svc, &out, dir
}

func TestItemsAddListRemove(t *testing.T) {
	c, svc, out, _ := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, c.run(ctx, []string{"items", "add", "-name", "Widget", "-qty", "3", "-price", "2.50"}))
	assert.Contains(t, out.String(), "Widget")
	assert.Contains(t, out.String(), "7.50")
	require.Len(t, svc.Items(), 1)

	out.Reset()
	require.NoError(t, c.run(ctx, []string{"items", "list"}))
	assert.Contains(t, out.String(), "Grand Total:")

	out.Reset()
	require.NoError(t, c.run(ctx, []string{"items", "rm", "1"}))
	assert.NotContains(t, out.String(), "Widget")
	assert.Empty(t, svc.Items())
}

func TestItemsAddRejectsInvalidInput(t *testing.T) {
	c, svc, _, _ := newTestCLI(t)

	err := c.run(context.Background(), []string{"items", "add", "-name", "Widget", "-qty", "0", "-price", "1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, svc.Requests())
}

func TestReportDownload(t *testing.T) {
	c, svc, out, dir := newTestCLI(t)
	svc.SetBody("csv", []byte("a,b\n"))

	require.NoError(t, c.run(context.Background(), []string{"report", "download", "-format", "csv"}))

	path := filepath.Join(dir, "inventory-report.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), path))
}

func TestReportRejectsUnknownFormat(t *testing.T) {
	c, svc, _, _ := newTestCLI(t)

	err := c.run(context.Background(), []string{"report", "download", "-format", "odt"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidFormat))
	assert.Empty(t, svc.Requests())
}

func TestReportDownloadFailure(t *testing.T) {
	c, svc, _, _ := newTestCLI(t)
	svc.FailWith("generate", http.StatusInternalServerError)

	err := c.run(context.Background(), []string{"report", "download"})
	assert.True(t, apperr.Is(err, apperr.KindReportGeneration))
}

func TestUsage(t *testing.T) {
	c, _, _, _ := newTestCLI(t)
	assert.Error(t, c.run(context.Background(), []string{"items"}))
	assert.Error(t, c.run(context.Background(), []string{"bogus", "x"}))
}

// lockedBuffer lets a test read output while run is still writing it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startPreview(t *testing.T, ctx context.Context, ttl time.Duration) (url string, done <-chan error, svc *testsupport.ReportService) {
	t.Helper()
	svc = testsupport.StartReportService(t)
	svc.SetBody("html", []byte("<h1>Inventory</h1>"))

	out := &lockedBuffer{}
	c := &cli{
		cfg: &config.Config{
			ReportServiceURL:   svc.URL(),
			RequestTimeout:     5 * time.Second,
			DefaultFormat:      "pdf",
			ExternalPreviewTTL: ttl,
			OpenBrowser:        false,
		},
		log: logger.Discard(),
		out: out,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.run(ctx, []string{"report", "preview", "-format", "html"}) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "preview at ") }, 2*time.Second, 5*time.Millisecond)
	fields := strings.Fields(out.String()[strings.Index(out.String(), "preview at "):])
	require.GreaterOrEqual(t, len(fields), 3)
	return fields[2], errCh, svc
}

func TestReportPreviewServesUntilTTL(t *testing.T) {
	url, done, svc := startPreview(t, context.Background(), time.Second)

	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Inventory</h1>", string(body))
	assert.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("preview did not exit after the reclaim TTL")
	}

	reqs := svc.ReportRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/reports/preview", reqs[0].Path)
}

func TestReportPreviewStopsOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	url, done, _ := startPreview(t, ctx, time.Hour)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("preview ignored cancellation")
	}

	client := &http.Client{Timeout: time.Second}
	if resp, err := client.Get(url); err == nil {
		_ = resp.Body.Close()
		t.Fatalf("loopback server still answering with %d", resp.StatusCode)
	}
}
