package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/tylerlaw/portfolio/internal/media"
	"go.uber.org/zap"
)

// DelayBetweenHostRequests is the minimum delay between downloads from the same host.
const DelayBetweenHostRequests = 500 * time.Millisecond

// maxFeedImageSize bounds a single feed download.
const maxFeedImageSize = 64 << 20

// ImportFeed imports the images of an RSS, Atom or JSON feed into the section slug.
// Each entry is identified by its GUID, falling back to its link.
func (i *Importer) ImportFeed(ctx context.Context, slug, title, feedURL string) (*Result, error) {
	section, err := i.upsertSection(ctx, slug, title)
	if err != nil {
		return nil, err
	}

	parsed, err := i.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	i.logger.Info("importing feed",
		zap.String("section", slug),
		zap.String("feed", feedURL),
		zap.Int("entries", len(parsed.Items)))

	candidates := make([]candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		candidates = append(candidates, i.feedCandidate(item))
	}
	return i.run(ctx, section, candidates)
}

func (i *Importer) feedCandidate(item *gofeed.Item) candidate {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	src, mimeType := feedImage(item)

	var fallback string
	if id != "" {
		fallback = uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String() + ".jpg"
	}
	var filename string
	if u, err := url.Parse(src); err == nil {
		filename = media.SanitizeFilename(path.Base(u.Path), fallback)
	} else {
		filename = fallback
	}

	var created *time.Time
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		created = &t
	}
	return candidate{
		id:          id,
		filename:    filename,
		mimeType:    mimeType,
		createdTime: created,
		sourceURL:   src,
		download: func(ctx context.Context) ([]byte, string, error) {
			return i.fetch(ctx, src)
		},
	}
}

// feedImage picks the image of an entry: an image enclosure, then
// media:content, then the item image.
func feedImage(item *gofeed.Item) (string, string) {
	for _, enc := range item.Enclosures {
		if enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL, enc.Type
		}
	}
	if exts, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range exts[name] {
				u := ext.Attrs["url"]
				if u == "" {
					continue
				}
				typ := ext.Attrs["type"]
				if typ != "" && !strings.HasPrefix(typ, "image/") {
					continue
				}
				return u, typ
			}
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL, ""
	}
	return "", ""
}

// fetch downloads one feed image without credentials.
func (i *Importer) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	host := extractHost(rawURL)
	if err := i.throttle.wait(ctx, host); err != nil {
		return nil, "", err
	}
	defer i.throttle.done(host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedImageSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxFeedImageSize {
		return nil, "", fmt.Errorf("get %s: larger than %d bytes", rawURL, maxFeedImageSize)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// hostThrottle spaces out requests to the same host.
type hostThrottle struct {
	delay       time.Duration
	mu          sync.Mutex
	lastRequest map[string]time.Time
}

func newHostThrottle(delay time.Duration) *hostThrottle {
	return &hostThrottle{
		delay:       delay,
		lastRequest: make(map[string]time.Time),
	}
}

// wait blocks until the host's delay has passed since its last request.
func (h *hostThrottle) wait(ctx context.Context, host string) error {
	h.mu.Lock()
	last := h.lastRequest[host]
	h.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	elapsed := time.Since(last)
	if elapsed >= h.delay {
		return nil
	}
	select {
	case <-time.After(h.delay - elapsed):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// done records the request time for the host.
func (h *hostThrottle) done(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRequest[host] = time.Now()
}

// extractHost gets the host from a URL.
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
