package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Movie is a single entry of the upcoming listing as the provider returns it.
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int   `json:"genre_ids"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
}

// UpcomingPage models one page of the upcoming endpoint.
type UpcomingPage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// UpcomingRequest selects one page of upcoming releases.
type UpcomingRequest struct {
	Page     int
	Region   string
	Language string
}

// UpcomingLister is implemented by Client and BreakerClient.
type UpcomingLister interface {
	Upcoming(ctx context.Context, req UpcomingRequest) (*UpcomingPage, error)
}

// Client talks to the TMDB v3 API.
type Client struct {
	apiKey     string
	readToken  string
	baseURL    string
	httpClient *http.Client
}

var _ UpcomingLister = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithReadToken authenticates with a v4 read-access token instead of the api_key parameter.
func WithReadToken(token string) Option {
	return func(c *Client) {
		c.readToken = strings.TrimSpace(token)
	}
}

// New creates a TMDB client. Either apiKey or a read token (WithReadToken) is required.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.apiKey == "" && client.readToken == "" {
		return nil, errors.New("tmdb api key or read token required")
	}
	return client, nil
}

// Upcoming fetches one page of movies scheduled for release.
func (c *Client) Upcoming(ctx context.Context, req UpcomingRequest) (*UpcomingPage, error) {
	if req.Page <= 0 {
		return nil, errors.New("page must be positive")
	}
	endpoint, err := url.Parse(c.baseURL + "/movie/upcoming")
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(req.Page))
	if req.Region != "" {
		params.Set("region", req.Region)
	}
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	if c.readToken == "" {
		params.Set("api_key", c.apiKey)
	}
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.readToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.readToken)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb upcoming page %d returned %d (latency=%v)", req.Page, resp.StatusCode, latency)
	}

	var payload UpcomingPage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tmdb upcoming page %d: %w", req.Page, err)
	}
	return &payload, nil
}
