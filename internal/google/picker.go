package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPollInterval is used when a session carries no polling hint.
const DefaultPollInterval = 5 * time.Second

// PickerSession is a Photos Picker session.
type PickerSession struct {
	ID            string        `json:"id"`
	PickerURI     string        `json:"pickerUri"`
	MediaItemsSet bool          `json:"mediaItemsSet"`
	ExpireTime    string        `json:"expireTime,omitempty"`
	PollingConfig PollingConfig `json:"pollingConfig"`
}

// PollingConfig is Google's polling hint; durations are strings like "5s".
type PollingConfig struct {
	PollInterval string `json:"pollInterval,omitempty"`
	TimeoutIn    string `json:"timeoutIn,omitempty"`
}

// PollInterval returns the recommended interval between session polls.
func (s *PickerSession) PollInterval() time.Duration {
	if d, err := time.ParseDuration(s.PollingConfig.PollInterval); err == nil && d > 0 {
		return d
	}
	return DefaultPollInterval
}

// PickedMediaItem is one item the owner selected in a picker session.
type PickedMediaItem struct {
	ID          string    `json:"id"`
	MediaItemID string    `json:"mediaItemId,omitempty"`
	Name        string    `json:"name,omitempty"`
	CreateTime  string    `json:"createTime,omitempty"`
	Type        string    `json:"type,omitempty"`
	MediaFile   MediaFile `json:"mediaFile"`
}

// MediaFile describes the downloadable bytes of a picked item.
type MediaFile struct {
	BaseURL           string            `json:"baseUrl"`
	MimeType          string            `json:"mimeType,omitempty"`
	Filename          string            `json:"filename,omitempty"`
	MediaFileMetadata MediaFileMetadata `json:"mediaFileMetadata"`
}

// MediaFileMetadata carries the pixel dimensions of a media file.
type MediaFileMetadata struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// StableID returns the item id, falling back to the last segment of its resource name.
func (m *PickedMediaItem) StableID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.MediaItemID != "" {
		return m.MediaItemID
	}
	if m.Name != "" {
		return m.Name[strings.LastIndex(m.Name, "/")+1:]
	}
	return ""
}

// IsVideo reports whether the item is a video.
func (m *PickedMediaItem) IsVideo() bool {
	return m.Type == "VIDEO" || strings.HasPrefix(m.MediaFile.MimeType, "video/")
}

// CreatedTime parses CreateTime, returning nil when it is missing or malformed.
func (m *PickedMediaItem) CreatedTime() *time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.CreateTime)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// CreatePickerSession starts a new picker session.
func (c *Client) CreatePickerSession(ctx context.Context) (*PickerSession, error) {
	var s PickerSession
	if err := c.doJSON(ctx, "sessions.create", http.MethodPost, c.pickerURL+"/sessions", struct{}{}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetPickerSession returns the current state of a session.
func (c *Client) GetPickerSession(ctx context.Context, id string) (*PickerSession, error) {
	var s PickerSession
	if err := c.doJSON(ctx, "sessions.get", http.MethodGet, c.pickerURL+"/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type listPickedResponse struct {
	MediaItems    []PickedMediaItem `json:"mediaItems"`
	NextPageToken string            `json:"nextPageToken"`
}

// ListPickedMediaItems returns every item of a session, following the page cursor to the end.
func (c *Client) ListPickedMediaItems(ctx context.Context, sessionID string) ([]PickedMediaItem, error) {
	var all []PickedMediaItem
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("sessionId", sessionID)
		q.Set("pageSize", "100")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page listPickedResponse
		if err := c.doJSON(ctx, "mediaItems.list", http.MethodGet, withQuery(c.pickerURL+"/mediaItems", q), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.MediaItems...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// DownloadMediaFile fetches the original bytes of a picked item.
func (c *Client) DownloadMediaFile(ctx context.Context, item *PickedMediaItem) ([]byte, string, error) {
	if item.MediaFile.BaseURL == "" {
		return nil, "", fmt.Errorf("media item %s has no base url", item.StableID())
	}
	suffix := "=d"
	if item.IsVideo() {
		suffix = "=dv"
	}
	resp, err := c.do(ctx, "mediaItems.download", http.MethodGet, item.MediaFile.BaseURL+suffix, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read media %s: %w", item.StableID(), err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
