package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable means the document could not be read or fetched.
	ErrUnavailable = errors.New("collection unavailable")
	// ErrMalformed means the document was read but is not a usable collection.
	ErrMalformed = errors.New("collection malformed")
)

// structureSchema checks only the parts of the collection PROBE touches.
const structureSchema = `{
  "type": "object",
  "required": ["item"],
  "properties": {
    "info": {"type": "object"},
    "item": {"type": "array", "items": {"$ref": "#/definitions/item"}}
  },
  "definitions": {
    "item": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "item": {"type": "array", "items": {"$ref": "#/definitions/item"}},
        "request": {"type": ["object", "string"]},
        "event": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "listen": {"type": "string"},
              "script": {
                "type": "object",
                "properties": {
                  "type": {"type": "string"},
                  "exec": {"type": ["array", "string"], "items": {"type": "string"}}
                }
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(structureSchema))
})

// Parse validates and decodes a collection document.
func Parse(data []byte) (*Collection, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile collection schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}

	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.normalize()
	return &c, nil
}

// Marshal encodes the collection with four-space indentation, the layout
// Postman itself uses on export.
func Marshal(c *Collection) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the collection to path.
func Save(c *Collection, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

// IsRemote reports whether source should be fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Loader obtains collections from disk or over HTTP.
type Loader struct {
	client        *http.Client
	retries       int
	retryInterval time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient overrides the client used for remote sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithRetries retries transient fetch failures, waiting at least interval
// between attempts.
func WithRetries(retries int, interval time.Duration) LoaderOption {
	return func(l *Loader) {
		if retries > 0 {
			l.retries = retries
		}
		if interval > 0 {
			l.retryInterval = interval
		}
	}
}

// NewLoader creates a loader with a 30 second HTTP timeout and no retries.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads source as a URL when it looks like one, otherwise as a file path.
func (l *Loader) Load(ctx context.Context, source string) (*Collection, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no source configured", ErrUnavailable)
	}
	if IsRemote(source) {
		return l.Fetch(ctx, source)
	}
	return LoadFile(source)
}

// LoadFile reads and parses a collection from disk.
func LoadFile(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found at %s", ErrUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Parse(data)
}

// Fetch downloads and parses a collection. Network errors and 5xx responses
// are retried; any other non-2xx status fails immediately.
func (l *Loader) Fetch(ctx context.Context, url string) (*Collection, error) {
	limiter := rate.NewLimiter(rate.Every(l.retryInterval), 1)

	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		data, retry, err := l.get(ctx, url)
		if err == nil {
			return Parse(data)
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (l *Loader) get(ctx context.Context, url string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: failed to fetch %s: %v", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode >= 500, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, url, resp.StatusCode)
	}
	return data, false, nil
}
