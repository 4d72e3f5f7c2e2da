// Package lrclib provides a client for the lrclib.net lyrics API.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when no lyrics are found.
var ErrNotFound = errors.New("lyrics not found")

const (
	// DefaultBaseURL is the public lrclib.net API.
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "pocketwaves/1.0 (https://github.com/llehouerou/pocketwaves)"
)

// Client is an lrclib.net API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another lrclib instance.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new lrclib client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LyricsResult represents the response from the lrclib API.
type LyricsResult struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// Get fetches lyrics by artist and title. Album and duration narrow the
// match when known.
func (c *Client) Get(ctx context.Context, artist, title, album string, duration time.Duration) (*LyricsResult, error) {
	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)
	if album != "" {
		params.Set("album_name", album)
	}
	if duration > 0 {
		params.Set("duration", fmt.Sprintf("%.0f", duration.Seconds()))
	}

	var result LyricsResult
	if err := c.get(ctx, "/get", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search returns lyrics matching a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]LyricsResult, error) {
	params := url.Values{}
	params.Set("q", query)

	var results []LyricsResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Text returns the synced lyrics when present, else the plain lyrics.
func (r *LyricsResult) Text() string {
	if r.SyncedLyrics != "" {
		return r.SyncedLyrics
	}
	return r.PlainLyrics
}

// Find tries an exact lookup and falls back to a search, preferring synced
// results. ErrNotFound means neither produced lyrics.
func (c *Client) Find(ctx context.Context, artist, title, album string, duration time.Duration) (*LyricsResult, error) {
	res, err := c.Get(ctx, artist, title, album, duration)
	if err == nil && res.Text() != "" {
		return res, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	results, err := c.Search(ctx, strings.TrimSpace(artist+" "+title))
	if err != nil {
		return nil, err
	}
	var plain *LyricsResult
	for i := range results {
		r := &results[i]
		if r.SyncedLyrics != "" {
			return r, nil
		}
		if plain == nil && r.PlainLyrics != "" {
			plain = r
		}
	}
	if plain != nil {
		return plain, nil
	}
	return nil, ErrNotFound
}
