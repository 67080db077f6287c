package cache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wisangg/storysync/internal/sserror"
)

// A Transport intercepts outbound requests and serves them from the cache
// partitions according to a per-request strategy:
//
//   - requests for the story service host are network-first,
//   - image requests are cache-first,
//   - everything else is stale-while-revalidate.
//
// Only successful GET responses are cached; other methods pass through.
type Transport struct {
	base    http.RoundTripper
	store   *Store
	apiHost string
	logger  logrus.FieldLogger
}

// NewTransport returns a caching Transport around base.
func NewTransport(base http.RoundTripper, store *Store, apiHost string, logger logrus.FieldLogger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		store:   store,
		apiHost: apiHost,
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	switch {
	case req.URL.Host == t.apiHost:
		return t.networkFirst(req)
	case isImage(req.URL.Path):
		return t.cacheFirst(req)
	default:
		return t.staleWhileRevalidate(req)
	}
}

// Precache fetches the given install-time assets into the static partition.
// A failing asset is logged and skipped; the others are still cached.
func (t *Transport) Precache(urls []string) {
	for _, u := range urls {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			t.logger.WithError(err).Warnf("could not precache %s", u)
			continue
		}

		res, err := t.base.RoundTrip(req)
		if err != nil {
			t.logger.WithError(err).Warnf("could not precache %s", u)
			continue
		}
		t.cacheResponse(StaticPartition, req, res)
		res.Body.Close()
	}
}

// cached returns the first entry found across the given partitions, in order.
// Every lookup chain ends on the static partition so precached install-time
// assets answer any strategy.
func (t *Transport) cached(req *http.Request, partitions ...string) *Entry {
	for _, partition := range partitions {
		entry, err := t.store.Get(partition, Key(req))
		if err != nil {
			t.logger.WithError(err).Warnf("could not read partition %s", partition)
			continue
		}
		if entry != nil {
			return entry
		}
	}
	return nil
}

// networkFirst tries the network and falls back on the cached copy.
func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err == nil {
		if successful(res) {
			res = t.cacheResponse(RuntimePartition, req, res)
		}
		return res, nil
	}

	if entry := t.cached(req, RuntimePartition, StaticPartition); entry != nil {
		return entry.Response(req), nil
	}
	return nil, sserror.NetworkUnavailable(err.Error())
}

// cacheFirst serves the cached copy and only fetches on a miss.
func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	if entry := t.cached(req, ImagePartition, StaticPartition); entry != nil {
		return entry.Response(req), nil
	}

	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, sserror.NetworkUnavailable(err.Error())
	}
	if successful(res) {
		res = t.cacheResponse(ImagePartition, req, res)
	}
	return res, nil
}

// staleWhileRevalidate serves the cached copy immediately and refreshes it in
// the background; without a cached copy the caller waits on the network.
func (t *Transport) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	if entry := t.cached(req, RuntimePartition, StaticPartition); entry != nil {
		go t.refresh(req.Clone(context.Background()))
		return entry.Response(req), nil
	}

	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, sserror.NetworkUnavailable(err.Error())
	}
	if successful(res) {
		res = t.cacheResponse(RuntimePartition, req, res)
	}
	return res, nil
}

// refresh re-fetches the request for next time. Failures are swallowed: the
// stale copy already returned is the final answer for the current call.
func (t *Transport) refresh(req *http.Request) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.WithError(err).Debugf("background refresh failed for %s", req.URL)
		return
	}
	if successful(res) {
		t.cacheResponse(RuntimePartition, req, res)
	}
	res.Body.Close()
}

// cacheResponse stores the response body and hands back an equivalent
// response whose body can still be read by the caller.
func (t *Transport) cacheResponse(partition string, req *http.Request, res *http.Response) *http.Response {
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.logger.WithError(err).Warnf("could not buffer response for %s", req.URL)
		res.Body = io.NopCloser(bytes.NewReader(body))
		return res
	}

	entry := &Entry{
		Status:   res.StatusCode,
		Header:   res.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}
	if err := t.store.Put(partition, Key(req), entry); err != nil {
		t.logger.WithError(err).Warnf("could not cache response for %s", req.URL)
	}

	res.Body = io.NopCloser(bytes.NewReader(body))
	return res
}

func successful(res *http.Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

func isImage(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico", ".avif":
		return true
	}
	return false
}
