package hooks

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// logLoader exposes structured logging to hook scripts:
//
//	local log = require("log")
//	log.info("sunset reached", {temperature = 3300})
func logLoader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(logFn(log.Debug)))
	L.SetField(mod, "info", L.NewFunction(logFn(log.Info)))
	L.SetField(mod, "warn", L.NewFunction(logFn(log.Warn)))
	L.SetField(mod, "error", L.NewFunction(logFn(log.Error)))

	L.Push(mod)
	return 1
}

func logFn(level func() *zerolog.Event) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := level().Str("source", "hook")
		for k, v := range parseFields(L, 2) {
			event = event.Interface(k, v)
		}
		event.Msg(msg)
		return 0
	}
}

func parseFields(L *lua.LState, argIndex int) map[string]interface{} {
	fields := make(map[string]interface{})

	arg := L.Get(argIndex)
	tbl, ok := arg.(*lua.LTable)
	if !ok {
		return fields
	}
	tbl.ForEach(func(key, value lua.LValue) {
		fields[lua.LVAsString(key)] = luaToGo(value)
	})
	return fields
}

func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}
