package hooks

import (
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/duskd/internal/transition"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sunsetChange() Change {
	return Change{
		Period:   transition.Period{Kind: transition.PeriodSunset, Progress: 0.25},
		Previous: transition.Period{Kind: transition.PeriodDay},
		Target:   transition.Target{Temperature: 5700, Gamma: 97.5},
	}
}

func TestRunnerInvokesHandler(t *testing.T) {
	script := `
seen = {}
function on_period(change)
	seen.period = change.period
	seen.prev = change.prev
	seen.temperature = change.temperature
	seen.gamma = change.gamma
	seen.progress = change.progress
end
`
	r := NewRunner()
	defer r.Close()
	r.Load(writeScript(t, script))
	if !r.Loaded() {
		t.Fatal("runner not loaded after Load")
	}

	r.OnPeriodChange(sunsetChange())

	seen, ok := r.state.GetGlobal("seen").(*lua.LTable)
	if !ok {
		t.Fatal("seen table not set by handler")
	}
	checks := []struct {
		field string
		want  lua.LValue
	}{
		{"period", lua.LString("sunset")},
		{"prev", lua.LString("day")},
		{"temperature", lua.LNumber(5700)},
		{"gamma", lua.LNumber(97.5)},
		{"progress", lua.LNumber(0.25)},
	}
	for _, c := range checks {
		if got := r.state.GetField(seen, c.field); got != c.want {
			t.Errorf("change.%s = %v, want %v", c.field, got, c.want)
		}
	}
}

func TestRunnerSurvivesHandlerError(t *testing.T) {
	r := NewRunner()
	defer r.Close()
	r.Load(writeScript(t, "function on_period(change)\n\terror(\"boom\")\nend\n"))
	if !r.Loaded() {
		t.Fatal("runner not loaded")
	}

	r.OnPeriodChange(sunsetChange())
	r.OnPeriodChange(sunsetChange())
	if !r.Loaded() {
		t.Error("runner unloaded after handler error")
	}
}

func TestRunnerWithoutHandler(t *testing.T) {
	r := NewRunner()
	defer r.Close()
	r.Load(writeScript(t, "x = 1\n"))
	if r.Loaded() {
		t.Error("runner loaded without on_period")
	}
	r.OnPeriodChange(sunsetChange())
}

func TestRunnerDisabled(t *testing.T) {
	r := NewRunner()
	defer r.Close()

	r.Load("")
	if r.Loaded() {
		t.Error("runner loaded with empty path")
	}

	r.Load(filepath.Join(t.TempDir(), "missing.lua"))
	if r.Loaded() {
		t.Error("runner loaded with missing script")
	}
	r.OnPeriodChange(sunsetChange())
}

func TestRunnerLogModule(t *testing.T) {
	script := `
local log = require("log")
function on_period(change)
	log.info("period changed", {period = change.period, progress = change.progress})
end
`
	r := NewRunner()
	defer r.Close()
	r.Load(writeScript(t, script))
	if !r.Loaded() {
		t.Fatal("runner not loaded")
	}
	r.OnPeriodChange(sunsetChange())
}

func TestRunnerReloadResetsState(t *testing.T) {
	r := NewRunner()
	defer r.Close()

	r.Load(writeScript(t, "marker = 1\nfunction on_period(change) end\n"))
	if !r.Loaded() {
		t.Fatal("first script not loaded")
	}

	r.Load(writeScript(t, "function on_period(change)\n\tcalled = true\nend\n"))
	if !r.Loaded() {
		t.Fatal("second script not loaded")
	}
	if r.state.GetGlobal("marker") != lua.LNil {
		t.Error("globals from the previous script leaked into the new state")
	}

	r.OnPeriodChange(sunsetChange())
	if r.state.GetGlobal("called") != lua.LTrue {
		t.Error("handler from the new script was not invoked")
	}
}
