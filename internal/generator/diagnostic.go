package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
)

// DiagnosticMarker prefixes every diagnostic candidate text, so callers can
// tell a reported failure from model output.
const DiagnosticMarker = "[zchat error]"

// IsDiagnostic reports whether resp is a diagnostic response.
func IsDiagnostic(resp *genai.GenerateContentResponse) bool {
	if resp == nil || len(resp.Candidates) == 0 {
		return false
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return false
	}
	return strings.HasPrefix(c.Content.Parts[0].Text, DiagnosticMarker)
}

// Diagnose turns err into a short message telling the user what went wrong
// and what to do about it.
func Diagnose(provider config.ProviderID, model string, err error) string {
	return DiagnosticMarker + " " + Explain(provider, model, err)
}

func diagnosticResponse(provider config.ProviderID, model string, err error) *genai.GenerateContentResponse {
	return textResponse(Diagnose(provider, model, err), model, genai.FinishReasonOther, zeroUsage())
}

// Explain is Diagnose without the marker, for callers that show the message
// directly.
func Explain(provider config.ProviderID, model string, err error) string {
	var httpErr *llm.HTTPError
	if errors.As(err, &httpErr) {
		return describeStatus(provider, model, httpErr.StatusCode, httpErr.Detail())
	}

	if code, msg, ok := apiError(err); ok {
		return describeStatus(provider, model, code, msg)
	}

	var streamErr *llm.StreamError
	if errors.As(err, &streamErr) {
		return fmt.Sprintf("%s reported an error mid-response: %s", provider, streamErr.Message)
	}

	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Error()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s did not answer in time. Try again, or pick a smaller model.", provider)
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, syscall.ECONNREFUSED):
		if provider == config.ProviderLocal {
			return "Cannot reach Ollama. Start it with: ollama serve"
		}
		return fmt.Sprintf("Cannot reach the %s API. Check your network connection.", provider)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("Cannot resolve %s. Check your network connection and host settings.", dnsErr.Name)
	}

	return fmt.Sprintf("%s request failed: %v", provider, err)
}

func describeStatus(provider config.ProviderID, model string, status int, detail string) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		switch provider {
		case config.ProviderCloud:
			return "Authentication failed. Check ANTHROPIC_API_KEY (zchat config set anthropic_api_key ...)."
		case config.ProviderLocal:
			return "Ollama rejected the request as unauthorized: " + detail
		default:
			return fmt.Sprintf("Authentication failed for %s: %s", provider, detail)
		}
	case status == http.StatusNotFound:
		if provider == config.ProviderLocal {
			return fmt.Sprintf("Model %q is not installed. Run: ollama pull %s", model, model)
		}
		return fmt.Sprintf("Model %q was not found: %s", model, detail)
	case status == http.StatusTooManyRequests:
		return "Rate limited. Wait a moment and try again."
	case status >= 500:
		return fmt.Sprintf("%s is having trouble (status %d). Try again shortly.", provider, status)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", provider, status, detail)
}

// apiError extracts status and message from a Gemini API error.
func apiError(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, v.Message, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, p.Message, true
	}
	return 0, "", false
}
