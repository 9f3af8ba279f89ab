package collection

import (
	"fmt"
	"strings"
	"testing"
)

type captureLogger struct {
	infos []string
	warns []string
}

func (l *captureLogger) Infof(format string, args ...any) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Warnf(format string, args ...any) {
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

var testBlocks = []Block{
	{
		Name: "status",
		Lines: []string{
			`pm.test("Response status code is 200", function () {`,
			`  pm.expect(pm.response.code).to.equal(200);`,
			`});`,
		},
	},
	{
		Name: "time",
		Lines: []string{
			`pm.test("Response time is within an acceptable range", function () {`,
			`  pm.expect(pm.response.responseTime).to.be.below(500);`,
			`});`,
		},
	},
}

func mustParse(t *testing.T, doc string) *Collection {
	t.Helper()
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

const twoItemDoc = `{
  "info": {"name": "Z"},
  "item": [
    {"name": "Login", "request": {"method": "POST", "url": "https://api.example.com/login"}},
    {"name": "Profile", "request": {"method": "GET", "url": "https://api.example.com/me"},
     "event": [{"listen": "test", "script": {"type": "text/javascript", "exec": ["console.log('x');"]}}]}
  ]
}`

func TestMutator_AppendToItemsWithoutEvents(t *testing.T) {
	c := mustParse(t, twoItemDoc)
	log := &captureLogger{}

	result := NewMutator(testBlocks, ModeAppend, log).Apply(c)

	if len(result.Modified) != 2 {
		t.Fatalf("Modified = %v, want 2 items", result.Modified)
	}

	login := c.Items[0]
	if len(login.Events) != 1 {
		t.Fatalf("Login events = %d, want 1", len(login.Events))
	}
	ev := login.Events[0]
	if ev.Listen != ListenTest {
		t.Errorf("Listen = %q, want %q", ev.Listen, ListenTest)
	}
	want := append(append([]string{}, testBlocks[0].Lines...), "")
	want = append(want, testBlocks[1].Lines...)
	if !equalLines(ev.Script.Exec, want) {
		t.Errorf("exec = %q, want %q", ev.Script.Exec, want)
	}

	if len(log.infos) != 2 || !strings.Contains(log.infos[0], "Login") {
		t.Errorf("progress lines = %q", log.infos)
	}
}

func TestMutator_AppendKeepsExistingLinesFirst(t *testing.T) {
	c := mustParse(t, twoItemDoc)

	NewMutator(testBlocks, ModeAppend, nil).Apply(c)

	exec := c.Items[1].Events[0].Script.Exec
	if exec[0] != "console.log('x');" {
		t.Errorf("exec[0] = %q, want pre-existing line first", exec[0])
	}
	if !containsBlock(exec, testBlocks[0]) || !containsBlock(exec, testBlocks[1]) {
		t.Errorf("exec %q missing a block", exec)
	}
	first := indexOf(exec, testBlocks[0].Lines[0])
	second := indexOf(exec, testBlocks[1].Lines[0])
	if first < 0 || second < 0 || first > second {
		t.Errorf("blocks out of order: %d, %d", first, second)
	}
}

func TestMutator_AppendIsIdempotent(t *testing.T) {
	c := mustParse(t, twoItemDoc)
	m := NewMutator(testBlocks, ModeAppend, nil)

	m.Apply(c)
	first := snapshotExec(c)

	result := m.Apply(c)
	second := snapshotExec(c)

	if len(result.Modified) != 0 {
		t.Errorf("second run modified %v, want none", result.Modified)
	}
	for name, exec := range first {
		if !equalLines(exec, second[name]) {
			t.Errorf("item %s changed on second run:\n%q\n%q", name, exec, second[name])
		}
	}
}

func TestMutator_AppendSkipsWholeBlockEntry(t *testing.T) {
	whole := "  " + strings.Join(testBlocks[0].Lines, "\n") + "\n"
	c := &Collection{Items: []*Item{{
		Name:    "one",
		Request: &Request{Method: "GET"},
		Events: []*Event{{
			Listen: ListenTest,
			Script: &Script{Type: DefaultScriptType, Exec: Lines{whole}},
		}},
	}}}

	NewMutator(testBlocks[:1], ModeAppend, nil).Apply(c)

	if got := c.Items[0].Events[0].Script.Exec; len(got) != 1 {
		t.Errorf("exec = %q, want block not re-added", got)
	}
}

func TestMutator_Replace(t *testing.T) {
	c := mustParse(t, twoItemDoc)

	result := NewMutator(testBlocks, ModeReplace, nil).Apply(c)
	if len(result.Modified) != 2 {
		t.Fatalf("Modified = %v, want 2", result.Modified)
	}

	want := NewMutator(testBlocks, ModeReplace, nil).replacement()
	for _, it := range c.Items {
		if got := testEvent(it).Script.Exec; !equalLines(got, want) {
			t.Errorf("%s exec = %q, want %q", it.Name, got, want)
		}
	}

	again := NewMutator(testBlocks, ModeReplace, nil).Apply(c)
	if len(again.Modified) != 0 {
		t.Errorf("replace rerun modified %v, want none", again.Modified)
	}
}

func TestMutator_SkipsItemsWithoutRequest(t *testing.T) {
	c := &Collection{Items: []*Item{
		{Name: "broken"},
		{Name: "ok", Request: &Request{Method: "GET"}},
	}}
	log := &captureLogger{}

	result := NewMutator(testBlocks, ModeAppend, log).Apply(c)

	if len(result.Skipped) != 1 || result.Skipped[0] != "broken" {
		t.Errorf("Skipped = %v, want [broken]", result.Skipped)
	}
	if len(result.Modified) != 1 || result.Modified[0] != "ok" {
		t.Errorf("Modified = %v, want [ok]", result.Modified)
	}
	if len(log.warns) != 1 {
		t.Errorf("warnings = %q, want 1", log.warns)
	}
}

func TestMutator_DescendsIntoFolders(t *testing.T) {
	c := mustParse(t, `{
  "item": [
    {"name": "Auth", "item": [
      {"name": "Login", "request": {"method": "POST", "url": "https://x/login"}},
      {"name": "Nested", "item": [
        {"name": "Refresh", "request": "https://x/refresh"}
      ]}
    ]}
  ]
}`)

	result := NewMutator(testBlocks, ModeAppend, nil).Apply(c)

	if len(result.Modified) != 2 {
		t.Errorf("Modified = %v, want [Login Refresh]", result.Modified)
	}
	if c.Items[0].Events != nil {
		t.Errorf("folder got events: %v", c.Items[0].Events)
	}
}

func TestMutator_NilCollection(t *testing.T) {
	log := &captureLogger{}
	result := NewMutator(testBlocks, ModeAppend, log).Apply(nil)
	if len(result.Modified) != 0 || len(log.warns) != 1 {
		t.Errorf("result = %+v, warns = %q", result, log.warns)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAppend, false},
		{"append", ModeAppend, false},
		{" Replace ", ModeReplace, false},
		{"merge", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func snapshotExec(c *Collection) map[string]Lines {
	out := make(map[string]Lines)
	c.Walk(func(it *Item) {
		if ev := testEvent(it); ev != nil && ev.Script != nil {
			out[it.Name] = append(Lines{}, ev.Script.Exec...)
		}
	})
	return out
}

func indexOf(lines Lines, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}
