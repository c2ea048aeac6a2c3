// Package siteinfo reads the theme test helper endpoint of a site under
// audit: theme header fields, theme and author URLs, and the list of public
// pages with the body class each one should carry.
package siteinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRoute is the REST route registered by the helper plugin.
const DefaultRoute = "/theme-test-helper/v1/info"

// ErrBadStatus is returned when the endpoint answers with a non-2xx status.
var ErrBadStatus = errors.New("siteinfo: unexpected status")

// SiteURL is one page to audit. On the wire it is a [path, query, subtype]
// triple, where query carries its leading "?" or is empty.
type SiteURL struct {
	Path    string `json:"path"`
	Query   string `json:"query"`
	Subtype string `json:"subtype"`
}

// String returns path and query joined, as used in messages.
func (s SiteURL) String() string {
	return s.Path + s.Query
}

// Resolve builds the absolute URL of s under base.
func (s SiteURL) Resolve(base string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("siteinfo: base url: %w", err)
	}
	ref, err := url.Parse(s.String())
	if err != nil {
		return "", fmt.Errorf("siteinfo: site url %q: %w", s.String(), err)
	}
	return b.ResolveReference(ref).String(), nil
}

// UnmarshalJSON decodes the triple form. Missing or null members are empty,
// a missing path is the site root.
func (s *SiteURL) UnmarshalJSON(data []byte) error {
	var parts []*string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("siteinfo: site url: %w", err)
	}
	get := func(i int) string {
		if i < len(parts) && parts[i] != nil {
			return *parts[i]
		}
		return ""
	}
	s.Path, s.Query, s.Subtype = get(0), get(1), get(2)
	if s.Path == "" {
		s.Path = "/"
	}
	if s.Query != "" && !strings.HasPrefix(s.Query, "?") {
		s.Query = "?" + s.Query
	}
	return nil
}

// MarshalJSON encodes the triple form.
func (s SiteURL) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{s.Path, s.Query, s.Subtype})
}

// Parse builds a SiteURL from a configured triple.
func Parse(parts []string) (SiteURL, error) {
	if len(parts) == 0 || len(parts) > 3 {
		return SiteURL{}, fmt.Errorf("siteinfo: site url %v: want [path, query, subtype]", parts)
	}
	data, _ := json.Marshal(parts)
	var s SiteURL
	err := s.UnmarshalJSON(data)
	return s, err
}

// Tags accepts both the array and the empty-string form PHP emits.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = nil
		for _, f := range strings.Split(s, ",") {
			if f = strings.TrimSpace(f); f != "" {
				*t = append(*t, f)
			}
		}
		return nil
	}
	var a []string
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = a
	return nil
}

// Theme holds the theme header fields.
type Theme struct {
	Name        string `json:"Name"`
	ThemeURI    string `json:"ThemeURI"`
	Description string `json:"Description"`
	Author      string `json:"Author"`
	AuthorURI   string `json:"AuthorURI"`
	Version     string `json:"Version"`
	Template    string `json:"Template"`
	Status      string `json:"Status"`
	Tags        Tags   `json:"Tags"`
	TextDomain  string `json:"TextDomain"`
	DomainPath  string `json:"DomainPath"`
}

// Info is the endpoint payload.
type Info struct {
	Theme     Theme     `json:"theme"`
	ThemeURLs []string  `json:"theme_urls"`
	SiteURLs  []SiteURL `json:"site_urls"`
}

// Client fetches Info from a site.
type Client struct {
	client *http.Client
	route  string
	ua     string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithRoute overrides the REST route.
func WithRoute(route string) Option {
	return func(cl *Client) { cl.route = route }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client with sensible defaults.
func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		route:  DefaultRoute,
		ua:     "uicheck/1.0",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the info URL for baseURL. The route travels in the
// rest_route query parameter so it works without pretty permalinks.
func (c *Client) Endpoint(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("siteinfo: base url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = url.Values{"rest_route": {c.route}}.Encode()
	return u.String(), nil
}

// Fetch GETs the info endpoint of the site at baseURL.
func (c *Client) Fetch(ctx context.Context, baseURL string) (*Info, error) {
	endpoint, err := c.Endpoint(baseURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("siteinfo: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteinfo: do: %w", err)
	}
	defer resp.Body.Close()

	// Cap read to 10MB; sitemaps of large sites stay well under it.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("siteinfo: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d from %s", ErrBadStatus, resp.StatusCode, endpoint)
	}

	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("siteinfo: decode: %w", err)
	}

	c.logger.Debug("siteinfo: fetched",
		"url", endpoint, "theme", info.Theme.Name,
		"site_urls", len(info.SiteURLs), "theme_urls", len(info.ThemeURLs))

	return &info, nil
}
