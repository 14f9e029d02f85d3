package lua

import (
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// GoFunc is a host function callable from Lua. A returned error is raised
// in Lua and keeps its identity when it surfaces as a running failure.
type GoFunc func(args []any) (any, error)

// Bridge converts host values to Lua values and back.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGoValueWithVisited(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGoValueWithVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

// tableToGo converts a Lua table to a slice when its keys are 1..n and to a
// map otherwise.
func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	isArray := true
	maxN, count := 0, 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGoValueWithVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = kv.String()
		default:
			key = k.String()
		}
		m[key] = b.toGoValueWithVisited(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value. Values with no Lua
// counterpart become userdata. Maps and slices that refer back to
// themselves convert to tables that refer back to themselves.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	return b.toLuaValueWithVisited(v, make(map[refKey]lua.LValue))
}

// refKey identifies a map, slice or pointer already being converted.
// Slices sharing a backing array differ by length.
type refKey struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

func (b *Bridge) toLuaValueWithVisited(v any, visited map[refKey]lua.LValue) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []string:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, lua.LString(e))
		}
		return t
	case GoFunc:
		return b.L.NewFunction(b.WrapGoFunc(val))
	case func(args []any) (any, error):
		return b.L.NewFunction(b.WrapGoFunc(val))
	case lua.LGFunction:
		return b.L.NewFunction(val)
	case func(*lua.LState) int:
		return b.L.NewFunction(val)
	default:
		return b.reflectToLua(v, visited)
	}
}

// reflectToLua uses reflection to convert arbitrary Go values.
func (b *Bridge) reflectToLua(v any, visited map[refKey]lua.LValue) lua.LValue {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return lua.LNil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
		if rv.Elem().Kind() == reflect.Struct {
			// Pointers to structs stay shared with the host.
			return b.userData(v)
		}
		key := refKey{kind: reflect.Ptr, ptr: rv.Pointer()}
		if lv, seen := visited[key]; seen {
			return lv
		}
		visited[key] = lua.LNil
		lv := b.toLuaValueWithVisited(rv.Elem().Interface(), visited)
		visited[key] = lv
		return lv

	case reflect.Slice:
		if rv.Len() == 0 {
			return b.L.NewTable()
		}
		key := refKey{kind: reflect.Slice, ptr: rv.Pointer(), len: rv.Len()}
		if lv, seen := visited[key]; seen {
			return lv
		}
		t := b.L.NewTable()
		visited[key] = t
		b.fillSequence(t, rv, visited)
		return t

	case reflect.Array:
		t := b.L.NewTable()
		b.fillSequence(t, rv, visited)
		return t

	case reflect.Map:
		if rv.Len() == 0 {
			return b.L.NewTable()
		}
		key := refKey{kind: reflect.Map, ptr: rv.Pointer()}
		if lv, seen := visited[key]; seen {
			return lv
		}
		t := b.L.NewTable()
		visited[key] = t
		iter := rv.MapRange()
		for iter.Next() {
			k := b.toLuaValueWithVisited(iter.Key().Interface(), visited)
			if k == lua.LNil {
				continue
			}
			t.RawSet(k, b.toLuaValueWithVisited(iter.Value().Interface(), visited))
		}
		return t

	case reflect.Struct:
		return b.structToTable(rv, visited)

	default:
		return b.userData(v)
	}
}

func (b *Bridge) fillSequence(t *lua.LTable, rv reflect.Value, visited map[refKey]lua.LValue) {
	for i := 0; i < rv.Len(); i++ {
		t.RawSetInt(i+1, b.toLuaValueWithVisited(rv.Index(i).Interface(), visited))
	}
}

func (b *Bridge) userData(v any) *lua.LUserData {
	ud := b.L.NewUserData()
	ud.Value = v
	return ud
}

// structToTable converts the exported fields of a struct to a table keyed
// by json tag or field name.
func (b *Bridge) structToTable(rv reflect.Value, visited map[refKey]lua.LValue) *lua.LTable {
	t := b.L.NewTable()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
			if before, _, _ := strings.Cut(tag, ","); before != "" {
				name = before
			}
		}

		t.RawSetString(name, b.toLuaValueWithVisited(rv.Field(i).Interface(), visited))
	}

	return t
}

// WrapGoFunc wraps a host function for use in Lua.
func (b *Bridge) WrapGoFunc(fn GoFunc) lua.LGFunction {
	return func(L *lua.LState) int {
		nArgs := L.GetTop()
		args := make([]any, nArgs)
		for i := 1; i <= nArgs; i++ {
			args[i-1] = b.ToGoValue(L.Get(i))
		}

		result, err := fn(args)
		if err != nil {
			raiseHostError(L, err)
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}

// raiseHostError raises err in Lua. The raised value is userdata holding
// err, so errors.Is/As still match after the script fails.
func raiseHostError(L *lua.LState, err error) {
	ud := L.NewUserData()
	ud.Value = err
	mt := L.NewTable()
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(err.Error()))
		return 1
	}))
	L.SetMetatable(ud, mt)
	L.Error(ud, 1)
}

// formatValue renders lv the way print does.
func formatValue(L *lua.LState, lv lua.LValue) string {
	if ud, ok := lv.(*lua.LUserData); ok {
		if err, ok := ud.Value.(error); ok {
			return err.Error()
		}
	}
	return L.ToStringMeta(lv).String()
}
