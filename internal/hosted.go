package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// renditionPreference is the order renditions are tried in, best first
var renditionPreference = []string{"source", "1080p", "720p", "540p", "360p", "240p"}

// HostedFile is one downloadable file of a hosted video
type HostedFile struct {
	Quality   string `json:"quality"`
	Rendition string `json:"rendition"`
	Link      string `json:"link"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Label is the short form used in logs, e.g. hd1080p
func (f HostedFile) Label() string {
	if f.Quality == f.Rendition {
		return f.Quality
	}
	return f.Quality + f.Rendition
}

func (f HostedFile) adaptive() bool {
	q := strings.ToLower(f.Quality)
	return q == "hls" || q == "dash"
}

// HostedVideo is the metadata the hosted platform returns for a video
type HostedVideo struct {
	Name  string       `json:"name"`
	Files []HostedFile `json:"files"`
}

// SelectRendition picks the best downloadable file by renditionPreference,
// skipping adaptive-streaming entries.
func SelectRendition(files []HostedFile) (HostedFile, error) {
	for _, want := range renditionPreference {
		for _, f := range files {
			if f.adaptive() || f.Link == "" {
				continue
			}
			if strings.EqualFold(f.Rendition, want) || (want == "source" && strings.EqualFold(f.Quality, "source")) {
				return f, nil
			}
		}
	}
	return HostedFile{}, wrapErr(ErrNoRendition, fmt.Sprintf("none of %d files matches %s", len(files), strings.Join(renditionPreference, ", ")), nil)
}

// HostedClient talks to the hosted video platform's metadata API
type HostedClient struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

// NewHostedClient creates a client for the metadata API at apiURL
func NewHostedClient(httpClient *http.Client, apiURL, token string) *HostedClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HostedClient{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
	}
}

// Video fetches name and file list for videoID
func (c *HostedClient) Video(ctx context.Context, videoID string) (*HostedVideo, error) {
	if c.token == "" {
		return nil, wrapErr(ErrNotConfigured, "hosted platform token is required - set hosted.token in config.toml or HOSTED_API_TOKEN", nil)
	}

	endpoint := fmt.Sprintf("%s/videos/%s?fields=name,files", c.apiURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, wrapErr(ErrMetadata, "building metadata request", err)
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.vimeo.*+json;version=3.4")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(ErrMetadata, "querying video metadata", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, wrapErr(ErrMetadata, "reading metadata response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr(ErrMetadata, fmt.Sprintf("video %s: HTTP %d: %s", videoID, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var video HostedVideo
	if err := json.Unmarshal(body, &video); err != nil {
		return nil, wrapErr(ErrMetadata, "decoding metadata response", err)
	}
	if len(video.Files) == 0 {
		return nil, wrapErr(ErrMetadata, fmt.Sprintf("video %s has no downloadable files", videoID), nil)
	}
	return &video, nil
}
