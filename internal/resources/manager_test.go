package resources_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
)

func payload(f reports.Format, body string) reports.Payload {
	return reports.Payload{
		Format:      f,
		Mode:        reports.ModePreview,
		ContentType: f.ContentType(),
		Data:        []byte(body),
		ReceivedAt:  time.Now(),
	}
}

func newManager(store resources.BlobStore, opts ...resources.ManagerOption) *resources.Manager {
	return resources.NewManager(store, resources.BaseURLLinker{BaseURL: "http://shell.test/"}, logger.Discard(), opts...)
}

func TestManager_WrapYieldsDistinctHandles(t *testing.T) {
	m := newManager(resources.NewMemoryStore())
	ctx := context.Background()

	a, err := m.Wrap(ctx, payload(reports.FormatPDF, "same"))
	require.NoError(t, err)
	b, err := m.Wrap(ctx, payload(reports.FormatPDF, "same"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.URL, b.URL)
	assert.Equal(t, "http://shell.test/blobs/"+a.ID, a.URL)
	assert.Equal(t, 4, a.Size)
	assert.Equal(t, "inventory-report.pdf", a.Filename())
	assert.Equal(t, 2, m.Outstanding())
}

func TestManager_ReleaseTwiceIsReleaseOnce(t *testing.T) {
	reg := metrics.New("test")
	store := resources.NewMemoryStore()
	m := newManager(store, resources.WithMetrics(reg))
	ctx := context.Background()

	h, err := m.Wrap(ctx, payload(reports.FormatCSV, "a,b"))
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, h))
	assert.Equal(t, 0, m.Outstanding())
	assert.Equal(t, 0, store.Len())

	require.NoError(t, m.Release(ctx, h))
	require.NoError(t, m.ReleaseByID(ctx, h.ID, resources.ReasonClosed))
	assert.Equal(t, 0, m.Outstanding())

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.HandlesReleased.WithLabelValues(resources.ReasonReleased)))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.HandlesReleased.WithLabelValues(resources.ReasonClosed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.HandlesOutstanding))
}

func TestManager_OpenAfterReleaseIsNotFound(t *testing.T) {
	m := newManager(resources.NewMemoryStore())
	ctx := context.Background()

	h, err := m.Wrap(ctx, payload(reports.FormatHTML, "<p>hi</p>"))
	require.NoError(t, err)

	got, blob, err := m.Open(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, "<p>hi</p>", string(blob.Data))
	assert.Equal(t, reports.FormatHTML.ContentType(), blob.ContentType)

	require.NoError(t, m.Release(ctx, h))
	_, _, err = m.Open(ctx, h.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.False(t, m.Live(h.ID))
}

func TestManager_ConcurrentReleaseReleasesOnce(t *testing.T) {
	reg := metrics.New("test")
	m := newManager(resources.NewMemoryStore(), resources.WithMetrics(reg))
	ctx := context.Background()

	h, err := m.Wrap(ctx, payload(reports.FormatPDF, "x"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Release(ctx, h)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.HandlesReleased.WithLabelValues(resources.ReasonReleased)))
}

func TestManager_CloseReleasesEverything(t *testing.T) {
	store := resources.NewMemoryStore()
	m := newManager(store)
	ctx := context.Background()

	for _, f := range reports.Formats() {
		_, err := m.Wrap(ctx, payload(f, string(f)))
		require.NoError(t, err)
	}
	assert.Equal(t, len(reports.Formats()), m.Outstanding())

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.Outstanding())
	assert.Equal(t, 0, store.Len())
}

type failingStore struct {
	resources.BlobStore
	putErr error
}

func (s failingStore) Put(context.Context, string, resources.Blob) error { return s.putErr }

func TestManager_WrapFailureLeavesNothingOutstanding(t *testing.T) {
	m := newManager(failingStore{BlobStore: resources.NewMemoryStore(), putErr: errors.New("disk full")})

	_, err := m.Wrap(context.Background(), payload(reports.FormatPDF, "x"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, 0, m.Outstanding())
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := resources.NewRedisStoreWithClient(client, time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Put(ctx, "h1", resources.Blob{ContentType: "application/pdf", Data: []byte("%PDF")}))

	blob, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", blob.ContentType)
	assert.Equal(t, "%PDF", string(blob.Data))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "h1")
	assert.ErrorIs(t, err, resources.ErrBlobNotFound)
}

func TestManager_WithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := resources.NewRedisStore("redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m := newManager(store)
	ctx := context.Background()

	h, err := m.Wrap(ctx, payload(reports.FormatXLSX, "sheet"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("inventory:blob:"+h.ID))

	_, blob, err := m.Open(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet", string(blob.Data))

	require.NoError(t, m.Release(ctx, h))
	assert.False(t, mr.Exists("inventory:blob:"+h.ID))
}

type staticMinIO struct{ endpoint string }

func (c staticMinIO) GetMinIOEndpoint() string      { return c.endpoint }
func (c staticMinIO) GetMinIOAccessKey() string     { return "key" }
func (c staticMinIO) GetMinIOSecretKey() string     { return "secret" }
func (c staticMinIO) GetMinIOUseSSL() bool          { return false }
func (c staticMinIO) GetMinIOBucketReports() string { return "inventory-reports" }
func (c staticMinIO) GetPresignTTL() time.Duration  { return 0 }
func (c staticMinIO) IsMinIOEnabled() bool          { return c.endpoint != "" }

func TestMinIOStore_LinkIsPresignedInline(t *testing.T) {
	_, err := resources.NewMinIOStore(staticMinIO{})
	require.Error(t, err)

	store, err := resources.NewMinIOStore(staticMinIO{endpoint: "localhost:9000"})
	require.NoError(t, err)

	url, err := store.Link(context.Background(), resources.Handle{
		ID:          "abc",
		Format:      reports.FormatPDF,
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/inventory-reports/abc?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "response-content-disposition=inline")
}
