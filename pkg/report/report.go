// Package report reads newman's JSON report and summarizes it.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound means no report exists at the given path.
var ErrNotFound = errors.New("report file not found")

// Failure is one failed assertion or request error.
type Failure struct {
	Source  string `json:"source"`
	Test    string `json:"test"`
	Message string `json:"message"`
}

// Summary holds the aggregate counts of a newman run.
type Summary struct {
	Requests   int       `json:"requests"`
	Assertions int       `json:"assertions"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
}

// AllPassed reports whether no assertion failed.
func (s *Summary) AllPassed() bool {
	return s.Failed == 0
}

type counter struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

type newmanReport struct {
	Run struct {
		Stats struct {
			Requests   counter `json:"requests"`
			Assertions counter `json:"assertions"`
		} `json:"stats"`
		Failures []struct {
			Error struct {
				Name    string `json:"name"`
				Test    string `json:"test"`
				Message string `json:"message"`
			} `json:"error"`
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"failures"`
	} `json:"run"`
}

// Analyze reads the report at path. A missing file returns ErrNotFound.
func Analyze(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return Parse(data)
}

// Parse summarizes a report document. Missing counts are treated as zero.
func Parse(data []byte) (*Summary, error) {
	var rep newmanReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	stats := rep.Run.Stats
	s := &Summary{
		Requests:   stats.Requests.Total,
		Assertions: stats.Assertions.Total,
		Failed:     stats.Assertions.Failed,
		Passed:     stats.Assertions.Total - stats.Assertions.Failed,
	}

	for _, f := range rep.Run.Failures {
		s.Failures = append(s.Failures, Failure{
			Source:  f.Source.Name,
			Test:    f.Error.Test,
			Message: f.Error.Message,
		})
	}
	return s, nil
}

// Print writes the plain-text summary.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "Test Summary:")
	fmt.Fprintf(w, "Total Requests: %d\n", s.Requests)
	fmt.Fprintf(w, "Total Assertions: %d\n", s.Assertions)
	fmt.Fprintf(w, "Passed: %d\n", s.Passed)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failures:")
	for i, f := range s.Failures {
		fmt.Fprintf(w, "%d. %s\n", i+1, f.label())
		if f.Message != "" {
			fmt.Fprintf(w, "   %s\n", f.Message)
		}
	}
}

// Markdown renders the summary as a markdown document for terminal rendering.
func (s *Summary) Markdown() string {
	var sb strings.Builder

	sb.WriteString("## Test Summary\n\n")
	sb.WriteString("| Metric | Count |\n")
	sb.WriteString("|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Total Requests | %d |\n", s.Requests))
	sb.WriteString(fmt.Sprintf("| Total Assertions | %d |\n", s.Assertions))
	sb.WriteString(fmt.Sprintf("| Passed | %d |\n", s.Passed))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Failed))

	if len(s.Failures) > 0 {
		sb.WriteString("\n### Failures\n\n")
		for _, f := range s.Failures {
			sb.WriteString(fmt.Sprintf("- **%s**", f.label()))
			if f.Message != "" {
				sb.WriteString(": " + f.Message)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f Failure) label() string {
	switch {
	case f.Source != "" && f.Test != "":
		return f.Source + " / " + f.Test
	case f.Source != "":
		return f.Source
	case f.Test != "":
		return f.Test
	default:
		return "unknown"
	}
}
