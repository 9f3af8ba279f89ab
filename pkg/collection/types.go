// Package collection models Postman collections and the in-memory edits PROBE
// applies to them before handing them to newman: assertion injection and
// Cookie header rewriting.
package collection

import (
	"encoding/json"
	"strings"
)

// ListenTest is the event type newman runs after a request completes.
const ListenTest = "test"

// DefaultScriptType is applied to scripts that do not declare one.
const DefaultScriptType = "text/javascript"

// Collection is a Postman v2.x collection.
type Collection struct {
	Info      Info            `json:"info"`
	Items     []*Item         `json:"item"`
	Events    []*Event        `json:"event,omitempty"`
	Variables json.RawMessage `json:"variable,omitempty"`
	Auth      json.RawMessage `json:"auth,omitempty"`
}

// Info holds collection metadata.
type Info struct {
	PostmanID   string          `json:"_postman_id,omitempty"`
	Name        string          `json:"name"`
	Description json.RawMessage `json:"description,omitempty"`
	Schema      string          `json:"schema,omitempty"`
	ExporterID  string          `json:"_exporter_id,omitempty"`
}

// Item is either a request (Request set) or a folder (Items set).
type Item struct {
	ID                      string          `json:"id,omitempty"`
	Name                    string          `json:"name"`
	Description             json.RawMessage `json:"description,omitempty"`
	Events                  []*Event        `json:"event,omitempty"`
	Request                 *Request        `json:"request,omitempty"`
	Responses               json.RawMessage `json:"response,omitempty"`
	Items                   []*Item         `json:"item,omitempty"`
	Variables               json.RawMessage `json:"variable,omitempty"`
	Auth                    json.RawMessage `json:"auth,omitempty"`
	ProtocolProfileBehavior json.RawMessage `json:"protocolProfileBehavior,omitempty"`
}

// IsFolder reports whether the item groups other items.
func (it *Item) IsFolder() bool {
	return it.Items != nil
}

// Event attaches a script to a request lifecycle hook ("prerequest" or "test").
type Event struct {
	ID       string  `json:"id,omitempty"`
	Listen   string  `json:"listen"`
	Script   *Script `json:"script,omitempty"`
	Disabled bool    `json:"disabled,omitempty"`
}

// Script is the source attached to an Event.
type Script struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Exec Lines  `json:"exec"`
}

// Lines is a script's exec sequence. Postman accepts either a single string
// or an array of lines; both decode into one entry per line.
type Lines []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lines) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = strings.Split(s, "\n")
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*l = lines
	return nil
}

// Request describes the HTTP call of an Item.
type Request struct {
	Method      string          `json:"method,omitempty"`
	Header      []*Header       `json:"header"`
	Body        json.RawMessage `json:"body,omitempty"`
	URL         json.RawMessage `json:"url,omitempty"`
	Auth        json.RawMessage `json:"auth,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
}

// UnmarshalJSON accepts the shorthand form where a request is only a URL string.
func (r *Request) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		r.Method = "GET"
		r.URL = json.RawMessage(trimmed)
		return nil
	}

	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Request(p)
	return nil
}

// Header is a single request header entry.
type Header struct {
	Key         string          `json:"key"`
	Value       string          `json:"value"`
	Type        string          `json:"type,omitempty"`
	Disabled    bool            `json:"disabled,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
}

// Credentials are the session tokens obtained from a login run.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.RefreshToken) != ""
}

// Walk calls fn for every request item in the collection, descending into folders.
func (c *Collection) Walk(fn func(*Item)) {
	walkItems(c.Items, fn)
}

func walkItems(items []*Item, fn func(*Item)) {
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.IsFolder() {
			walkItems(it.Items, fn)
			continue
		}
		fn(it)
	}
}

// normalize applies parse-time defaults so later code never has to check
// for missing fields: nil slices become empty, scripts get a type, and an
// item's test events are merged into one.
func (c *Collection) normalize() {
	if c.Items == nil {
		c.Items = []*Item{}
	}
	normalizeItems(c.Items)
}

func normalizeItems(items []*Item) {
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.IsFolder() {
			normalizeItems(it.Items)
			continue
		}
		if it.Request != nil && it.Request.Header == nil {
			it.Request.Header = []*Header{}
		}
		for _, ev := range it.Events {
			if ev != nil && ev.Script != nil {
				if ev.Script.Type == "" {
					ev.Script.Type = DefaultScriptType
				}
				if ev.Script.Exec == nil {
					ev.Script.Exec = Lines{}
				}
			}
		}
		it.Events = mergeTestEvents(it.Events)
	}
}

// mergeTestEvents folds every "test" event after the first into the first,
// keeping exec order. Nil events are dropped.
func mergeTestEvents(events []*Event) []*Event {
	var first *Event
	out := events[:0]
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.Listen != ListenTest {
			out = append(out, ev)
			continue
		}
		if first == nil {
			first = ev
			out = append(out, ev)
			continue
		}
		if ev.Script == nil {
			continue
		}
		if first.Script == nil {
			first.Script = &Script{Type: DefaultScriptType, Exec: Lines{}}
		}
		first.Script.Exec = append(first.Script.Exec, ev.Script.Exec...)
	}
	return out
}
