package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"safety-monitor/distress"
)

// WindowSize is the number of samples sent per request (one second at 16 kHz).
const WindowSize = 16000

// ErrEmptyClassification is returned when the service answers without any scores.
var ErrEmptyClassification = errors.New("classifier returned no classification")

// Client talks to a remote four-class audio classifier over HTTP.
type Client struct {
	serviceURL string
	apiKey     string
	client     *http.Client
}

type classifyRequest struct {
	Data []float32 `json:"data"`
}

type classifyResponse struct {
	Results []struct {
		Classification map[string]float64 `json:"classification"`
	} `json:"results"`
	Classification map[string]float64 `json:"classification"`
}

// NewClient creates a classifier client. apiKey may be empty.
func NewClient(serviceURL, apiKey string) *Client {
	if serviceURL == "" {
		serviceURL = "http://localhost:5002/classify"
	}

	return &Client{
		serviceURL: serviceURL,
		apiKey:     apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// HealthCheck verifies the classifier endpoint answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("classifier not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// Classify posts the first WindowSize samples and returns the parsed scores.
func (c *Client) Classify(ctx context.Context, samples []float32) (distress.Classification, error) {
	if len(samples) > WindowSize {
		samples = samples[:WindowSize]
	}

	payload, err := json.Marshal(classifyRequest{Data: samples})
	if err != nil {
		return distress.Classification{}, fmt.Errorf("failed to encode samples: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(payload))
	if err != nil {
		return distress.Classification{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return distress.Classification{}, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return distress.Classification{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return parseResponse(resp.Body)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

// parseResponse reads scores from results[0].classification, falling back to a
// top-level classification object. Keys may be lower-case or capitalised.
func parseResponse(r io.Reader) (distress.Classification, error) {
	var body classifyResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return distress.Classification{}, fmt.Errorf("failed to decode response: %w", err)
	}

	scores := body.Classification
	if len(body.Results) > 0 && len(body.Results[0].Classification) > 0 {
		scores = body.Results[0].Classification
	}
	if len(scores) == 0 {
		return distress.Classification{}, ErrEmptyClassification
	}

	return distress.Classification{
		Scream:  score(scores, "scream", "Scream"),
		Noise:   score(scores, "noise", "Noise"),
		Talking: score(scores, "talking", "Talking"),
		Silence: score(scores, "silence", "Silence"),
	}, nil
}

// score returns the first non-zero value among keys, or 0.
func score(m map[string]float64, keys ...string) float64 {
	for _, k := range keys {
		if v := m[k]; v != 0 {
			return v
		}
	}
	return 0
}

// AudioLevel is a 0..1 loudness estimate: ten times the RMS, clamped.
func AudioLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return math.Min(1, rms*10)
}
