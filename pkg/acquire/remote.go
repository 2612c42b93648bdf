package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// maxRemoteBody caps the size of a remote-endpoint reply.
const maxRemoteBody = 10 << 20

type remoteEndpoint struct {
	log     logrus.FieldLogger
	url     string
	client  *http.Client
	timeout time.Duration
}

func newRemoteEndpoint(log logrus.FieldLogger, deps Deps) *remoteEndpoint {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	timeout := deps.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}

	return &remoteEndpoint{
		log:     log.WithField("url", deps.APIURL),
		url:     deps.APIURL,
		client:  client,
		timeout: timeout,
	}
}

type remoteRequest struct {
	Query   string `json:"query"`
	Context string `json:"context"`
}

func (s *remoteEndpoint) Name() Mode {
	return ModeRemoteEndpoint
}

// Acquire posts the query and context and extracts the output from the
// reply: the "output" field, else the "result" field, else the whole body.
func (s *remoteEndpoint) Acquire(ctx context.Context, query, referenceContext string) (string, error) {
	payload, err := json.Marshal(remoteRequest{Query: query, Context: referenceContext})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("model endpoint responded with %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	s.log.WithField("bytes", len(body)).Debug("Received model endpoint reply")

	return extractOutput(body)
}

// extractOutput picks the text to judge out of a JSON object reply.
func extractOutput(body []byte) (string, error) {
	var reply map[string]any
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if reply == nil {
		return "", fmt.Errorf("decoding response: expected a JSON object")
	}

	for _, field := range []string{"output", "result"} {
		text, err := fieldText(reply[field])
		if err != nil {
			return "", fmt.Errorf("decoding %q: %w", field, err)
		}

		if text != "" {
			return text, nil
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", fmt.Errorf("compacting response: %w", err)
	}

	return compact.String(), nil
}

// fieldText renders a reply field as text. Empty values, false and zero
// yield "" so the next candidate is tried.
func fieldText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case bool:
		if !val {
			return "", nil
		}
	case float64:
		if val == 0 {
			return "", nil
		}
	case map[string]any, []any:
		if isEmptyCollection(val) {
			return "", nil
		}

		raw, err := json.Marshal(val)
		if err != nil {
			return "", err
		}

		return string(raw), nil
	}

	var text string
	if err := mapstructure.WeakDecode(v, &text); err != nil {
		return "", err
	}

	return text, nil
}

func isEmptyCollection(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}

	return false
}
