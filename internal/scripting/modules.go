package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/dice"
)

// RegisterModules registers the engine.log and engine.dice tables into L and
// aliases engine.dice as the global "dice".
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine and dice globals are defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	diceMod := m.diceModule(L)
	L.SetField(engine, "dice", diceMod)
	L.SetGlobal("engine", engine)
	L.SetGlobal("dice", diceMod)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, log := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			log(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(m.luaRoll))
	L.SetField(mod, "odds", L.NewFunction(m.luaOdds))
	L.SetField(mod, "p", L.NewFunction(m.luaP))
	return mod
}

// luaRoll implements dice.roll(notation) -> {total, explanation, notation, id}.
func (m *Manager) luaRoll(L *lua.LState) int {
	res, err := m.roller.RollExpr(L.CheckString(1))
	if err != nil {
		L.RaiseError("dice.roll: %s", err.Error())
		return 0
	}
	t := L.NewTable()
	L.SetField(t, "total", lua.LNumber(res.Total))
	L.SetField(t, "explanation", lua.LString(res.Explanation))
	L.SetField(t, "notation", lua.LString(res.Notation))
	L.SetField(t, "id", lua.LString(res.ID.String()))
	L.Push(t)
	return 1
}

// luaOdds implements dice.odds(notation) -> {notation, min, max, expected,
// variance, incomplete, masses = {[outcome] = p}}.
func (m *Manager) luaOdds(L *lua.LState) int {
	report, err := m.odds.Odds(L.Context(), L.CheckString(1))
	if err != nil {
		L.RaiseError("dice.odds: %s", err.Error())
		return 0
	}
	d := report.Distribution
	t := L.NewTable()
	L.SetField(t, "notation", lua.LString(report.Notation))
	L.SetField(t, "min", lua.LNumber(d.Min()))
	L.SetField(t, "max", lua.LNumber(d.Max()))
	L.SetField(t, "expected", lua.LNumber(d.Expected()))
	L.SetField(t, "variance", lua.LNumber(d.Variance()))
	L.SetField(t, "incomplete", lua.LBool(d.Incomplete()))

	masses := L.NewTable()
	for _, v := range d.Outcomes() {
		masses.RawSetInt(v, lua.LNumber(d.PEq(v)))
	}
	L.SetField(t, "masses", masses)
	L.Push(t)
	return 1
}

// luaP implements dice.p(notation, op, target) -> probability.
func (m *Manager) luaP(L *lua.LState) int {
	text := L.CheckString(1)
	op, err := dice.ParseOperator(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	target := L.CheckInt(3)
	p, err := m.odds.P(L.Context(), text, op, target)
	if err != nil {
		L.RaiseError("dice.p: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(p))
	return 1
}
