package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrClassifier wraps failures of a remote classifier.
var ErrClassifier = errors.New("classifier request failed")

// HTTPClassifier calls a remote model server. It POSTs
// {"features":[distance_km, congestion, incidents, time_of_day]} and reads
// {"label": <string or number>}.
type HTTPClassifier struct {
	URL    string
	Client *http.Client
}

// NewHTTPClassifier creates a classifier for the model endpoint at url.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		URL: url,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type predictRequest struct {
	Features [4]float64 `json:"features"`
}

type predictResponse struct {
	Label json.RawMessage `json:"label"`
}

func (c *HTTPClassifier) Predict(ctx context.Context, f Features) (Label, error) {
	body, err := json.Marshal(predictRequest{Features: f.Vector()})
	if err != nil {
		return "", fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassifier, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClassifier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrClassifier, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrClassifier, err)
	}
	return decodeLabel(out.Label)
}

// decodeLabel accepts a JSON string or number.
func decodeLabel(raw json.RawMessage) (Label, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Label(s), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return Label(strconv.FormatFloat(n, 'g', -1, 64)), nil
	}
	return "", fmt.Errorf("%w: label %s is neither string nor number", ErrClassifier, raw)
}
