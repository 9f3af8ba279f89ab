package collection

import (
	"fmt"
	"strings"
)

// Mode selects how assertion blocks are written into a test script.
type Mode string

const (
	// ModeAppend adds each block that is not already present.
	ModeAppend Mode = "append"
	// ModeReplace overwrites the test script with exactly the configured blocks.
	ModeReplace Mode = "replace"
)

// ParseMode converts a config value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("unknown mutation mode '%s' (use: append, replace)", s)
	}
}

// Block is one assertion, usually a single pm.test(...) call spread over lines.
type Block struct {
	Name  string   `yaml:"name" json:"name"`
	Lines []string `yaml:"lines" json:"lines"`
}

// Text returns the block as a single trimmed string.
func (b Block) Text() string {
	return strings.TrimSpace(strings.Join(b.Lines, "\n"))
}

// Logger receives progress and warnings from collection edits.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warnf(string, ...any) {}

// MutationResult lists the items touched by Mutator.Apply.
type MutationResult struct {
	Modified []string
	Skipped  []string
}

// Mutator injects assertion blocks into every request's test script.
type Mutator struct {
	blocks []Block
	mode   Mode
	log    Logger
}

// NewMutator creates a mutator. A nil logger discards progress output.
func NewMutator(blocks []Block, mode Mode, log Logger) *Mutator {
	if log == nil {
		log = nopLogger{}
	}
	if mode == "" {
		mode = ModeAppend
	}
	return &Mutator{blocks: blocks, mode: mode, log: log}
}

// Apply edits c in place. Items that cannot be edited are reported in
// MutationResult.Skipped and do not stop the traversal.
func (m *Mutator) Apply(c *Collection) MutationResult {
	var result MutationResult
	if c == nil {
		m.log.Warnf("no collection to update")
		return result
	}

	c.Walk(func(it *Item) {
		name := itemName(it)
		if it.Request == nil {
			m.log.Warnf("Skipping item %s: no request", name)
			result.Skipped = append(result.Skipped, name)
			return
		}

		if m.applyItem(it) {
			m.log.Infof("Updating 'exec' in item: %s", name)
			result.Modified = append(result.Modified, name)
		}
	})
	return result
}

func (m *Mutator) applyItem(it *Item) bool {
	if it.Events == nil {
		it.Events = []*Event{}
	}

	ev := testEvent(it)
	if ev == nil {
		ev = &Event{Listen: ListenTest}
		it.Events = append(it.Events, ev)
	}
	if ev.Script == nil {
		ev.Script = &Script{Type: DefaultScriptType}
	}
	if ev.Script.Exec == nil {
		ev.Script.Exec = Lines{}
	}

	if m.mode == ModeReplace {
		next := m.replacement()
		if equalLines(ev.Script.Exec, next) {
			return false
		}
		ev.Script.Exec = next
		return true
	}

	changed := false
	for _, b := range m.blocks {
		if b.Text() == "" || containsBlock(ev.Script.Exec, b) {
			continue
		}
		exec := ev.Script.Exec
		if len(exec) > 0 && strings.TrimSpace(exec[len(exec)-1]) != "" {
			exec = append(exec, "")
		}
		ev.Script.Exec = append(exec, b.Lines...)
		changed = true
	}
	return changed
}

// replacement is the exec sequence written in ModeReplace: every block,
// separated by an empty line.
func (m *Mutator) replacement() Lines {
	out := Lines{}
	for _, b := range m.blocks {
		if b.Text() == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, "")
		}
		out = append(out, b.Lines...)
	}
	return out
}

func testEvent(it *Item) *Event {
	for _, ev := range it.Events {
		if ev != nil && ev.Listen == ListenTest {
			return ev
		}
	}
	return nil
}

// containsBlock reports whether exec already holds b, either as one entry
// equal to the whole block or as a run of entries equal to its lines.
// Comparison ignores surrounding whitespace.
func containsBlock(exec Lines, b Block) bool {
	text := b.Text()
	for _, line := range exec {
		if strings.TrimSpace(line) == text {
			return true
		}
	}

	lines := trimmedLines(b.Lines)
	if len(lines) == 0 || len(lines) > len(exec) {
		return false
	}
	for start := 0; start+len(lines) <= len(exec); start++ {
		match := true
		for i, want := range lines {
			if strings.TrimSpace(exec[start+i]) != want {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// trimmedLines trims each line and drops leading and trailing blank lines.
func trimmedLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimSpace(l))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func equalLines(a, b Lines) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func itemName(it *Item) string {
	if it.Name == "" {
		return "Unknown Item"
	}
	return it.Name
}
