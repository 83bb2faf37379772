// Package geocode resolves trigger coordinates into a human-readable address
// via a Nominatim-compatible endpoint.  Strictly best-effort: the incident
// flow never waits on or fails because of this lookup.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/havenloop/haven/internal/config"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
	"github.com/havenloop/haven/pkg/types/geo"
)

// Client calls the reverse geocoding endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewClient builds the geocoder from config.  A zero timeout defaults to two
// seconds; the lookup sits on the trigger path and must stay cheap.
func NewClient(cfg config.GeocodeConfig, log logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("geocode"),
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode returns the display address for a point, or an empty string
// when the endpoint is not configured.
func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	if c.baseURL == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", p.Lat))
	q.Set("lon", fmt.Sprintf("%f", p.Lng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "failed to build geocode request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "geocode request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrCodeExternalService, "geocode endpoint returned %d", resp.StatusCode)
	}

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode geocode response")
	}
	return decoded.DisplayName, nil
}
