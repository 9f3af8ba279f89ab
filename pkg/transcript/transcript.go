// Package transcript pulls session credentials out of newman output.
//
// The console path scrapes the box newman draws around a response body in
// --verbose mode. It depends on newman's exact console layout and breaks
// whenever that layout changes, so the JSON report path (FromReport) is
// preferred whenever a report is available.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/blackcoderx/probe/pkg/collection"
)

var (
	ErrMarkerNotFound = errors.New("response panel not found in output")
	ErrEmptyPanel     = errors.New("response panel is empty")
	ErrMalformedBody  = errors.New("response body is not valid JSON")
	ErrMissingToken   = errors.New("access_token or refresh_token missing")
	ErrNoResponse     = errors.New("report has no response bodies")
)

// Markers describe how newman frames a response body:
//
//	┌ ↓ application/json ★ text ★ json ★ utf8 ★ 94B
//	│ {"data":{"access_token":"abc","refresh_token":"xyz"}}
//	└
type Markers struct {
	Header string
	Footer string
	Border string
}

// DefaultMarkers match newman 5 and 6.
var DefaultMarkers = Markers{
	Header: "┌ ↓",
	Footer: "└",
	Border: "│",
}

// Extractor finds response panels in console output.
type Extractor struct {
	markers Markers
}

// NewExtractor creates an extractor. Empty marker fields use DefaultMarkers.
func NewExtractor(m Markers) *Extractor {
	if m.Header == "" {
		m.Header = DefaultMarkers.Header
	}
	if m.Footer == "" {
		m.Footer = DefaultMarkers.Footer
	}
	if m.Border == "" {
		m.Border = DefaultMarkers.Border
	}
	return &Extractor{markers: m}
}

// ExtractCredentials runs the default extractor over console output.
func ExtractCredentials(console string) (collection.Credentials, error) {
	return NewExtractor(DefaultMarkers).Credentials(console)
}

// Panels returns the body of every response panel in console, decoration
// removed and lines joined. An unterminated panel runs to end of output.
func (e *Extractor) Panels(console string) []string {
	var panels []string
	var current []string
	inPanel := false

	for _, raw := range strings.Split(console, "\n") {
		line := strings.TrimSpace(stripansi.Strip(raw))

		if !inPanel {
			if strings.HasPrefix(line, e.markers.Header) {
				inPanel = true
				current = current[:0]
			}
			continue
		}

		if strings.HasPrefix(line, e.markers.Footer) {
			panels = append(panels, strings.Join(current, ""))
			inPanel = false
			continue
		}
		current = append(current, strings.TrimSpace(strings.TrimPrefix(line, e.markers.Border)))
	}

	if inPanel {
		panels = append(panels, strings.Join(current, ""))
	}
	return panels
}

// ResponseBody returns the last response panel in console.
func (e *Extractor) ResponseBody(console string) (string, error) {
	panels := e.Panels(console)
	if len(panels) == 0 {
		return "", ErrMarkerNotFound
	}
	body := panels[len(panels)-1]
	if body == "" {
		return "", ErrEmptyPanel
	}
	return body, nil
}

// Credentials returns the tokens from the last response panel that holds
// both of them. When none does, the error describes the last panel tried.
func (e *Extractor) Credentials(console string) (collection.Credentials, error) {
	panels := e.Panels(console)
	if len(panels) == 0 {
		return collection.Credentials{}, ErrMarkerNotFound
	}

	var lastErr error
	for i := len(panels) - 1; i >= 0; i-- {
		if panels[i] == "" {
			if lastErr == nil {
				lastErr = ErrEmptyPanel
			}
			continue
		}
		creds, err := FromBody([]byte(panels[i]))
		if err == nil {
			return creds, nil
		}
		if lastErr == nil || errors.Is(lastErr, ErrEmptyPanel) {
			lastErr = err
		}
	}
	return collection.Credentials{}, lastErr
}

type tokenBody struct {
	Data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
}

// FromBody reads data.access_token and data.refresh_token from a JSON body.
func FromBody(body []byte) (collection.Credentials, error) {
	var tb tokenBody
	if err := json.Unmarshal(body, &tb); err != nil {
		return collection.Credentials{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	creds := collection.Credentials{
		AccessToken:  tb.Data.AccessToken,
		RefreshToken: tb.Data.RefreshToken,
	}
	if !creds.Valid() {
		return collection.Credentials{}, ErrMissingToken
	}
	return creds, nil
}

type reportExecutions struct {
	Run struct {
		Executions []struct {
			Item struct {
				Name string `json:"name"`
			} `json:"item"`
			Response *struct {
				Stream *struct {
					Data []int `json:"data"`
				} `json:"stream"`
			} `json:"response"`
		} `json:"executions"`
	} `json:"run"`
}

// FromReport reads the credentials from newman's JSON report, taking the
// last response body that contains both tokens.
func FromReport(data []byte) (collection.Credentials, error) {
	var rep reportExecutions
	if err := json.Unmarshal(data, &rep); err != nil {
		return collection.Credentials{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	execs := rep.Run.Executions
	var lastErr error = ErrNoResponse
	for i := len(execs) - 1; i >= 0; i-- {
		resp := execs[i].Response
		if resp == nil || resp.Stream == nil || len(resp.Stream.Data) == 0 {
			continue
		}

		body := make([]byte, len(resp.Stream.Data))
		for j, b := range resp.Stream.Data {
			body[j] = byte(b)
		}

		creds, err := FromBody(body)
		if err == nil {
			return creds, nil
		}
		if errors.Is(lastErr, ErrNoResponse) {
			lastErr = err
		}
	}
	return collection.Credentials{}, lastErr
}
