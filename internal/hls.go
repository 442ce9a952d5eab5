package internal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const maxPlaylistBytes = 4 << 20

// Variant is one rendition listed in an HLS master playlist
type Variant struct {
	Bandwidth int64  `json:"bandwidth"`
	URI       string `json:"uri"`
}

var bandwidthAttr = regexp.MustCompile(`(?:^|[:,])BANDWIDTH=(\d+)`)

// ParseMasterPlaylist reads #EXT-X-STREAM-INF entries and the URI line following each
func ParseMasterPlaylist(r io.Reader) ([]Variant, error) {
	var variants []Variant
	var pending *int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxPlaylistBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pending = nil
			m := bandwidthAttr.FindStringSubmatch(strings.TrimPrefix(line, "#EXT-X-STREAM-INF"))
			if m == nil {
				continue
			}
			bw, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			pending = &bw
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending != nil {
				variants = append(variants, Variant{Bandwidth: *pending, URI: line})
				pending = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	return variants, nil
}

// SelectVariant returns the highest-bandwidth variant; the first one wins a tie
func SelectVariant(variants []Variant) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// ResolveVariantURL makes a variant URI absolute against the playlist URL
func ResolveVariantURL(playlistURL, uri string) (string, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return "", fmt.Errorf("parsing playlist URL: %w", err)
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing variant URI: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// HLSClient fetches master playlists from CDNs that expect browser-like requests
type HLSClient struct {
	httpClient *http.Client
	referer    string
	userAgent  string
}

// NewHLSClient creates a playlist fetcher that sends referer and userAgent on every request
func NewHLSClient(httpClient *http.Client, referer, userAgent string) *HLSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HLSClient{httpClient: httpClient, referer: referer, userAgent: userAgent}
}

// Headers are the request headers used for the playlist and for the stream download
func (c *HLSClient) Headers() map[string]string {
	headers := make(map[string]string, 2)
	if c.referer != "" {
		headers["Referer"] = c.referer
	}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}
	return headers
}

// Variants fetches and parses the master playlist at playlistURL
func (c *HLSClient) Variants(ctx context.Context, playlistURL string) ([]Variant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, wrapErr(ErrDownload, "building playlist request", err)
	}
	for name, value := range c.Headers() {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(ErrDownload, "fetching playlist", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr(ErrDownload, fmt.Sprintf("fetching playlist: HTTP %d", resp.StatusCode), nil)
	}

	variants, err := ParseMasterPlaylist(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, wrapErr(ErrDownload, "parsing playlist", err)
	}
	return variants, nil
}

// BestStreamURL returns the absolute URL of the highest-bandwidth variant
func (c *HLSClient) BestStreamURL(ctx context.Context, playlistURL string) (string, Variant, error) {
	variants, err := c.Variants(ctx, playlistURL)
	if err != nil {
		return "", Variant{}, err
	}

	best, ok := SelectVariant(variants)
	if !ok {
		return "", Variant{}, wrapErr(ErrDownload, "playlist has no variant streams", nil)
	}

	streamURL, err := ResolveVariantURL(playlistURL, best.URI)
	if err != nil {
		return "", Variant{}, wrapErr(ErrDownload, "resolving variant", err)
	}
	return streamURL, best, nil
}
