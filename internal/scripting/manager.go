package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/odds"
)

// ErrNoScript is returned by Call when no script was loaded under the name.
var ErrNoScript = errors.New("scripting: no script loaded")

// Manager owns one sandboxed LState per loaded script and dispatches calls
// into them.
//
// Each LState is single-threaded; the mutex serializes every call.
type Manager struct {
	mu        sync.Mutex
	states    map[string]*lua.LState
	roller    *dice.Roller
	odds      *odds.Service
	logger    *zap.Logger
	instLimit int
}

// NewManager creates a Manager.
//
// Precondition: roller, oddsSvc and logger must be non-nil; instLimit >= 0
// where 0 uses DefaultInstructionLimit.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, oddsSvc *odds.Service, logger *zap.Logger, instLimit int) *Manager {
	return &Manager{
		states:    make(map[string]*lua.LState),
		roller:    roller,
		odds:      oddsSvc,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadFile loads a single Lua file under name.
func (m *Manager) LoadFile(ctx context.Context, name, path string) error {
	return m.load(ctx, name, func(L *lua.LState) error {
		if err := L.DoFile(path); err != nil {
			return fmt.Errorf("scripting: loading %q for %q: %w", path, name, err)
		}
		return nil
	})
}

// LoadDir executes every *.lua file in dir in lexicographic order into one VM
// registered under name.
//
// Precondition: dir must be a readable directory.
// Postcondition: The VM replaces any previous one under name; returns error on Lua load failure.
func (m *Manager) LoadDir(ctx context.Context, name, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, name, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	return m.load(ctx, name, func(L *lua.LState) error {
		for _, path := range luaFiles {
			if err := L.DoFile(path); err != nil {
				return fmt.Errorf("scripting: loading %q for %q: %w", path, name, err)
			}
		}
		return nil
	})
}

// LoadString loads Lua source under name.
func (m *Manager) LoadString(ctx context.Context, name, src string) error {
	return m.load(ctx, name, func(L *lua.LState) error {
		if err := L.DoString(src); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", name, err)
		}
		return nil
	})
}

func (m *Manager) load(ctx context.Context, name string, run func(*lua.LState) error) error {
	L := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)

	cancel := Budget(ctx, L, m.instLimit)
	err := run(L)
	cancel()
	if err != nil {
		L.Close()
		return err
	}

	m.mu.Lock()
	if old, ok := m.states[name]; ok {
		old.Close()
	}
	m.states[name] = L
	m.mu.Unlock()
	m.logger.Debug("script loaded", zap.String("script", name))
	return nil
}

// Call calls the named Lua global function in the script loaded under name
// with a fresh instruction budget.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value, LNil when the function is
// not defined, ErrNoScript for an unknown name, or the Lua runtime error.
func (m *Manager) Call(ctx context.Context, name, fn string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L, ok := m.states[name]
	if !ok {
		return lua.LNil, fmt.Errorf("%w: %q", ErrNoScript, name)
	}
	f := L.GetGlobal(fn)
	if f == lua.LNil {
		m.logger.Info("scripting: function not defined",
			zap.String("script", name),
			zap.String("function", fn),
		)
		return lua.LNil, nil
	}

	cancel := Budget(ctx, L, m.instLimit)
	defer cancel()
	if err := L.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", name),
			zap.String("function", fn),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: calling %s in %q: %w", fn, name, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Close releases every loaded VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, L := range m.states {
		L.Close()
		delete(m.states, name)
	}
}
