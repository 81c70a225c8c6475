// internal/thumbnail/modio.go
package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// gameID is the mod.io game namespace all mods of interest live under.
const gameID = 3809

// maturityMatureBit is the maturity_option flag mod.io sets on adult
// content.
const maturityMatureBit = 8

// ErrNoThumbnail marks a mod whose API record carries no usable logo.
var ErrNoThumbnail = errors.New("thumbnail: mod has no thumbnail")

// Remote describes where a mod's thumbnail can be downloaded from.
type Remote struct {
	ModID  int64
	URL    string
	Mature bool
}

// Fetcher resolves a mod id to its remote thumbnail location. Split out
// so tests can substitute the live API.
type Fetcher interface {
	Thumbnail(ctx context.Context, modID int64) (Remote, error)
}

// ModClient is the live mod.io Fetcher.
type ModClient struct {
	// BaseURL defaults to the public mod.io API.
	BaseURL string
	// Token is the bearer token the API requires.
	Token string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

const defaultBaseURL = "https://api.mod.io/v1"

func (c *ModClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *ModClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// Thumbnail looks the mod up on mod.io and returns its 320x180 logo
// location plus the maturity classification.
func (c *ModClient) Thumbnail(ctx context.Context, modID int64) (Remote, error) {
	url := fmt.Sprintf("%s/games/%d/mods/%d", c.baseURL(), gameID, modID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Remote{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-Modio-Platform", "windows")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Remote{}, fmt.Errorf("thumbnail: mod.io request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Remote{}, fmt.Errorf("thumbnail: mod.io returned %s for mod %d", resp.Status, modID)
	}

	var body struct {
		MaturityOption int `json:"maturity_option"`
		Logo           struct {
			Thumb320x180 string `json:"thumb_320x180"`
		} `json:"logo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Remote{}, fmt.Errorf("thumbnail: decoding mod.io response: %w", err)
	}
	if body.Logo.Thumb320x180 == "" {
		return Remote{}, ErrNoThumbnail
	}
	return Remote{
		ModID:  modID,
		URL:    body.Logo.Thumb320x180,
		Mature: body.MaturityOption&maturityMatureBit != 0,
	}, nil
}

// download streams the remote image and returns its bytes.
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail: download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
