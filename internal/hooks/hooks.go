// Package hooks runs the optional Lua extension script. The daemon
// calls into it whenever the period kind changes, so users can trigger
// notifications or switch wallpapers without patching the daemon.
package hooks

import (
	"os"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/duskd/internal/transition"
)

const periodHandler = "on_period"

// Change describes a period boundary crossing handed to the script.
type Change struct {
	Period   transition.Period
	Previous transition.Period
	Target   transition.Target
}

// Runner owns a single Lua state. Every call happens on the reconcile
// goroutine, so the state needs no locking.
type Runner struct {
	state  *lua.LState
	script string
}

func NewRunner() *Runner {
	return &Runner{}
}

// Load replaces the active script with the one at path. An empty path
// disables hooks. A script that fails to load or defines no handler
// leaves hooks disabled with a warning; the daemon keeps running.
func (r *Runner) Load(path string) {
	r.closeState()
	r.script = path
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		log.Warn().Err(err).Str("script", path).Msg("Hook script unavailable")
		return
	}

	L := lua.NewState()
	L.PreloadModule("log", logLoader)
	if err := L.DoFile(path); err != nil {
		log.Warn().Err(err).Str("script", path).Msg("Hook script failed to load")
		L.Close()
		return
	}
	if L.GetGlobal(periodHandler).Type() != lua.LTFunction {
		log.Warn().Str("script", path).Str("function", periodHandler).Msg("Hook script defines no handler")
		L.Close()
		return
	}

	r.state = L
	log.Info().Str("script", path).Msg("Hook script loaded")
}

// Loaded reports whether a handler is ready to be invoked.
func (r *Runner) Loaded() bool {
	return r.state != nil
}

// OnPeriodChange invokes on_period with a table describing the
// crossing. Script errors are logged and swallowed.
func (r *Runner) OnPeriodChange(change Change) {
	if r.state == nil {
		return
	}
	L := r.state

	tbl := L.NewTable()
	L.SetField(tbl, "period", lua.LString(change.Period.Kind.String()))
	L.SetField(tbl, "prev", lua.LString(change.Previous.Kind.String()))
	L.SetField(tbl, "temperature", lua.LNumber(change.Target.Temperature))
	L.SetField(tbl, "gamma", lua.LNumber(change.Target.Gamma))
	L.SetField(tbl, "progress", lua.LNumber(change.Period.Progress))

	L.Push(L.GetGlobal(periodHandler))
	L.Push(tbl)
	if err := L.PCall(1, 0, nil); err != nil {
		log.Warn().Err(err).Str("script", r.script).Msg("Hook failed")
	}
}

// Close releases the Lua state. The runner can be reused via Load.
func (r *Runner) Close() {
	r.closeState()
}

func (r *Runner) closeState() {
	if r.state != nil {
		r.state.Close()
		r.state = nil
	}
}
