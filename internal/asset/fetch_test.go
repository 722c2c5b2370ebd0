package asset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("hello"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		case "/err":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(50*time.Millisecond, 32, zap.NewNop())
	ctx := context.Background()

	data, err := f.Fetch(ctx, MustParseURL(srv.URL+"/ok"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.Fetch(ctx, MustParseURL(srv.URL+"/missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(ctx, MustParseURL(srv.URL+"/err"))
	assert.ErrorContains(t, err, "status 500")

	_, err = f.Fetch(ctx, MustParseURL(srv.URL+"/big"))
	assert.ErrorContains(t, err, "exceeds")

	_, err = f.Fetch(ctx, MustParseURL(srv.URL+"/slow"))
	assert.Error(t, err, "client timeout surfaces as a fetch error")
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))

	f := NewFileFetcher(dir)
	data, err := f.Fetch(context.Background(), MustParseURL("file://"+filepath.ToSlash(p)))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = f.Fetch(context.Background(), MustParseURL("file://"+filepath.ToSlash(filepath.Join(dir, "nope.json"))))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(context.Background(), MustParseURL("file:///etc/passwd"))
	assert.ErrorContains(t, err, "outside asset root")
}

func TestSchemeFetcher(t *testing.T) {
	m := SchemeFetcher{"http": FetchFunc(func(context.Context, URL) ([]byte, error) { return []byte("h"), nil })}
	data, err := m.Fetch(context.Background(), MustParseURL("http://h/x"))
	require.NoError(t, err)
	assert.Equal(t, "h", string(data))

	_, err = m.Fetch(context.Background(), MustParseURL("https://h/x"))
	assert.ErrorIs(t, err, ErrBadScheme)
}

func TestRedisFetcherCachesBytes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	calls := 0
	inner := FetchFunc(func(context.Context, URL) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	})
	f := NewRedisFetcher(rdb, inner, time.Minute, "objectd:bytes:", zap.NewNop())
	u := MustParseURL("http://h/objects/main.json")

	for i := 0; i < 3; i++ {
		data, err := f.Fetch(context.Background(), u)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("objectd:bytes:http://h/objects/main.json"))
}

func TestRedisFetcherDegradesWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	f := NewRedisFetcher(rdb, FetchFunc(func(context.Context, URL) ([]byte, error) {
		return []byte("direct"), nil
	}), time.Minute, "p:", zap.NewNop())
	data, err := f.Fetch(context.Background(), MustParseURL("http://h/x"))
	require.NoError(t, err)
	assert.Equal(t, "direct", string(data))
}
