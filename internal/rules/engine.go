// Package rules wraps a gopher-lua VM exposing the two formula hooks the
// encounter core defers to a script instead of hard-coding: the stagger
// accrual rate for component G's stagger gauge, and an override for whether
// a zone counts as a trackable raid instance.
package rules

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/engine"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only — called
// from the encounter core's packet-handling goroutine, never concurrently.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a rules VM and loads every .lua file under scriptsDir.
// A missing directory is not an error: StaggerDelta falls back to
// DefaultStaggerDelta and ZoneIsRaid reports no override.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load rules scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded rules script", zap.String("file", path))
	}
	return nil
}

// StaggerDelta calls the Lua stagger_delta(current, max, dt_ms) hook, which
// returns the signed change in stagger value for this tick. Falls back to
// DefaultStaggerDelta if the script does not define the function.
func (e *Engine) StaggerDelta(current, max int64, dtMS int64) int64 {
	fn := e.vm.GetGlobal("stagger_delta")
	if fn == lua.LNil {
		return DefaultStaggerDelta(current, max, dtMS)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(current), lua.LNumber(max), lua.LNumber(dtMS)); err != nil {
		e.log.Error("lua stagger_delta error", zap.Error(err))
		return DefaultStaggerDelta(current, max, dtMS)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int64(lua.LVAsNumber(result))
}

// DefaultStaggerDelta delegates to internal/engine's canonical fallback
// formula, so a missing or erroring stagger_delta script and a nil rule
// engine land on the exact same default instead of two hand-maintained
// copies drifting apart.
func DefaultStaggerDelta(current, max int64, dtMS int64) int64 {
	return engine.DefaultStaggerDelta(current, max, dtMS)
}

// ZoneIsRaid calls the optional Lua zone_is_raid(zone_id) override, letting
// an operator flag a zone as trackable without a metadata-table reload.
// Returns (value, true) if the script defines the hook, else (false, false)
// so the caller falls back to the static zone table.
func (e *Engine) ZoneIsRaid(zoneID uint32) (isRaid bool, overridden bool) {
	fn := e.vm.GetGlobal("zone_is_raid")
	if fn == lua.LNil {
		return false, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(zoneID)); err != nil {
		e.log.Error("lua zone_is_raid error", zap.Error(err), zap.Uint32("zone_id", zoneID))
		return false, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	if result == lua.LNil {
		return false, false
	}
	return result == lua.LTrue, true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
