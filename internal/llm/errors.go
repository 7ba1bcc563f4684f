package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/simonyos/zchat/internal/config"
)

// maxErrorBody caps how much of a failed response is kept.
const maxErrorBody = 64 << 10

// ErrUnsupportedOperation is returned for operations a backend cannot serve.
var ErrUnsupportedOperation = errors.New("operation not supported by this provider")

// HTTPError is returned when a backend answers with a non-2xx status.
type HTTPError struct {
	Provider   config.ProviderID
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Detail returns the error message embedded in the response body when the
// body is one of the known JSON error shapes, else the raw body.
func (e *HTTPError) Detail() string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &body) == nil && len(body.Error) > 0 {
		// Ollama: {"error": "..."}
		var msg string
		if json.Unmarshal(body.Error, &msg) == nil {
			return msg
		}
		// Anthropic: {"type":"error","error":{"type":"...","message":"..."}}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return strings.TrimSpace(e.Body)
}

// StreamError is an error event delivered inside an otherwise healthy stream.
type StreamError struct {
	Provider config.ProviderID
	Kind     string
	Message  string
}

func (e *StreamError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s stream error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s stream error (%s): %s", e.Provider, e.Kind, e.Message)
}

// checkResponse turns a non-2xx response into an *HTTPError and closes the
// body. A 2xx response is left untouched.
func checkResponse(provider config.ProviderID, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
