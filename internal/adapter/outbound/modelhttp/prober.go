// Package modelhttp talks to OpenAI-compatible endpoints. The only
// outbound call the backend itself makes to a model source is the
// connectivity probe; chat traffic belongs to the desktop client.
package modelhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

const probeTimeout = 5 * time.Second

// Prober checks whether a model endpoint answers.
type Prober struct {
	client *http.Client
}

// NewProber creates a prober. client may be nil.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	return &Prober{client: client}
}

// Probe GETs {baseURL}/models and returns the advertised model ids.
// apiKey, when non-empty, is sent as a bearer token. Failures are
// transient: the endpoint may simply not be running yet.
func (p *Prober) Probe(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fault.Validation("invalid base url %q: %v", baseURL, err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fault.Transient("model probe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.Transient("model probe",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// OpenAI list shape: {"data": [{"id": "..."}]}.
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fault.Transient("model probe", fmt.Errorf("decode response: %w", err))
	}

	models := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}
