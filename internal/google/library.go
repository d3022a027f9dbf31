package google

import (
	"context"
	"net/http"
	"net/url"
)

// Album is a Photos Library album.
type Album struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ProductURL        string `json:"productUrl,omitempty"`
	MediaItemsCount   string `json:"mediaItemsCount,omitempty"`
	CoverPhotoBaseURL string `json:"coverPhotoBaseUrl,omitempty"`
}

// LibraryMediaItem is a media item returned by the Library API.
type LibraryMediaItem struct {
	ID            string        `json:"id"`
	Description   string        `json:"description,omitempty"`
	ProductURL    string        `json:"productUrl,omitempty"`
	BaseURL       string        `json:"baseUrl"`
	MimeType      string        `json:"mimeType,omitempty"`
	Filename      string        `json:"filename,omitempty"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// MediaMetadata uses strings for dimensions, as the Library API does.
type MediaMetadata struct {
	CreationTime string `json:"creationTime,omitempty"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
}

type listAlbumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// ListAlbums returns all of the owner's albums.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var all []Album
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", "50")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page listAlbumsResponse
		if err := c.doJSON(ctx, "albums.list", http.MethodGet, withQuery(c.libraryURL+"/albums", q), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Albums...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

type searchRequest struct {
	AlbumID   string `json:"albumId"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken,omitempty"`
}

type searchResponse struct {
	MediaItems    []LibraryMediaItem `json:"mediaItems"`
	NextPageToken string             `json:"nextPageToken"`
}

// SearchAlbumMediaItems returns every media item in an album.
func (c *Client) SearchAlbumMediaItems(ctx context.Context, albumID string) ([]LibraryMediaItem, error) {
	var all []LibraryMediaItem
	req := searchRequest{AlbumID: albumID, PageSize: 100}
	for {
		var page searchResponse
		if err := c.doJSON(ctx, "mediaItems.search", http.MethodPost, c.libraryURL+"/mediaItems:search", req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.MediaItems...)
		if page.NextPageToken == "" {
			return all, nil
		}
		req.PageToken = page.NextPageToken
	}
}
