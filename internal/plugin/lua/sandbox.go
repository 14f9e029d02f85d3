package lua

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L      *lua.LState
	output io.Writer
	start  time.Time

	capabilities map[Capability]bool
	removed      map[string]lua.LValue

	filesMu sync.Mutex
	files   map[*luaFile]struct{}
}

// Capability represents a permission that can be granted to plugins.
type Capability string

// Available capabilities.
const (
	CapabilityFileRead  Capability = "filesystem.read"
	CapabilityFileWrite Capability = "filesystem.write"
	CapabilityShell     Capability = "shell"
	CapabilityProcess   Capability = "process.spawn"
	CapabilityUnsafe    Capability = "unsafe" // Full Lua stdlib access
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	CapabilityFileRead,
	CapabilityFileWrite,
	CapabilityShell,
	CapabilityProcess,
	CapabilityUnsafe,
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// NewSandbox creates a new sandbox for the Lua state. Process output from
// os.execute goes to output.
func NewSandbox(L *lua.LState, output io.Writer) *Sandbox {
	if output == nil {
		output = io.Discard
	}
	return &Sandbox{
		L:            L,
		output:       output,
		start:        time.Now(),
		capabilities: make(map[Capability]bool),
		removed:      make(map[string]lua.LValue),
		files:        make(map[*luaFile]struct{}),
	}
}

// dangerousFuncs load code from outside the scope.
var dangerousFuncs = []string{"dofile", "loadfile", "load", "loadstring"}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range dangerousFuncs {
		s.removed[name] = s.L.GetGlobal(name)
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafeRequire()
}

// installSafeRequire wraps require so io, os and debug need a capability.
// Every other name goes through the preload table and the scope-restricted
// package.path.
func (s *Sandbox) installSafeRequire() {
	originalRequire := s.L.GetGlobal("require")
	if originalRequire == lua.LNil {
		return
	}

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		switch modName {
		case "io":
			if !s.HasCapability(CapabilityFileRead) && !s.HasCapability(CapabilityFileWrite) && !s.HasCapability(CapabilityUnsafe) {
				L.RaiseError("module 'io' requires filesystem capability")
				return 0
			}
			L.Push(L.GetGlobal("io"))
			return 1
		case "os":
			if !s.HasCapability(CapabilityShell) && !s.HasCapability(CapabilityProcess) && !s.HasCapability(CapabilityUnsafe) {
				L.RaiseError("module 'os' requires shell or process capability")
				return 0
			}
			L.Push(L.GetGlobal("os"))
			return 1
		case "debug":
			if !s.HasCapability(CapabilityUnsafe) {
				L.RaiseError("module 'debug' requires unsafe capability")
				return 0
			}
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) {
	if s.capabilities[c] {
		return
	}
	s.capabilities[c] = true

	switch c {
	case CapabilityFileRead, CapabilityFileWrite:
		s.injectIO()
	case CapabilityShell:
		s.injectOS()
	case CapabilityProcess:
		s.injectOS()
		s.injectExecute()
	case CapabilityUnsafe:
		s.injectUnsafeLibraries()
	}
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	return s.capabilities[c]
}

// Capabilities returns all granted capabilities in declaration order.
func (s *Sandbox) Capabilities() []Capability {
	caps := make([]Capability, 0, len(s.capabilities))
	for _, c := range AllCapabilities {
		if s.capabilities[c] {
			caps = append(caps, c)
		}
	}
	return caps
}

// CapabilityError is returned when a capability is not granted or unknown.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	if !e.Capability.Valid() {
		return "unknown capability: " + string(e.Capability)
	}
	return "capability not granted: " + string(e.Capability)
}

// luaFile is a file handle owned by a script.
type luaFile struct {
	f      *os.File
	r      *bufio.Reader
	closed bool
}

func (s *Sandbox) track(f *os.File) *luaFile {
	lf := &luaFile{f: f, r: bufio.NewReader(f)}
	s.filesMu.Lock()
	s.files[lf] = struct{}{}
	s.filesMu.Unlock()
	return lf
}

func (s *Sandbox) release(lf *luaFile) error {
	s.filesMu.Lock()
	delete(s.files, lf)
	s.filesMu.Unlock()
	if lf.closed {
		return nil
	}
	lf.closed = true
	return lf.f.Close()
}

// closeFiles closes every handle the script left open.
func (s *Sandbox) closeFiles() error {
	s.filesMu.Lock()
	open := make([]*luaFile, 0, len(s.files))
	for lf := range s.files {
		open = append(open, lf)
	}
	s.filesMu.Unlock()

	var errs []error
	for _, lf := range open {
		if err := s.release(lf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openFlags maps Lua file modes to os flags.
var openFlags = map[string]int{
	"r":   os.O_RDONLY,
	"rb":  os.O_RDONLY,
	"w":   os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	"wb":  os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	"a":   os.O_WRONLY | os.O_CREATE | os.O_APPEND,
	"ab":  os.O_WRONLY | os.O_CREATE | os.O_APPEND,
	"r+":  os.O_RDWR,
	"r+b": os.O_RDWR,
	"w+":  os.O_RDWR | os.O_CREATE | os.O_TRUNC,
	"w+b": os.O_RDWR | os.O_CREATE | os.O_TRUNC,
	"a+":  os.O_RDWR | os.O_CREATE | os.O_APPEND,
	"a+b": os.O_RDWR | os.O_CREATE | os.O_APPEND,
}

// injectIO installs a limited io module. Write modes need
// filesystem.write at call time.
func (s *Sandbox) injectIO() {
	if s.capabilities[CapabilityUnsafe] {
		return
	}
	ioMod, ok := s.L.GetGlobal("io").(*lua.LTable)
	if !ok {
		ioMod = s.L.NewTable()
	}

	s.L.SetField(ioMod, "open", s.L.NewFunction(func(L *lua.LState) int {
		filename := L.CheckString(1)
		mode := L.OptString(2, "r")

		flag, known := openFlags[mode]
		if !known {
			L.ArgError(2, "invalid mode")
			return 0
		}
		if flag != os.O_RDONLY && !s.capabilities[CapabilityFileWrite] {
			L.ArgError(2, "only read modes (r, rb) are allowed")
			return 0
		}

		file, err := os.OpenFile(filename, flag, 0o644)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		ud := L.NewUserData()
		ud.Value = s.track(file)
		L.SetMetatable(ud, s.fileMetatable())
		L.Push(ud)
		return 1
	}))

	s.L.SetField(ioMod, "lines", s.L.NewFunction(func(L *lua.LState) int {
		filename := L.CheckString(1)
		content, err := os.ReadFile(filename)
		if err != nil {
			L.RaiseError("cannot open file: %s", err.Error())
			return 0
		}
		L.Push(linesIterator(L, splitLines(string(content))))
		return 1
	}))

	s.L.SetGlobal("io", ioMod)
}

func linesIterator(L *lua.LState, lines []string) *lua.LFunction {
	idx := 0
	return L.NewFunction(func(L *lua.LState) int {
		if idx >= len(lines) {
			return 0
		}
		L.Push(lua.LString(lines[idx]))
		idx++
		return 1
	})
}

func checkFile(L *lua.LState) *luaFile {
	ud := L.CheckUserData(1)
	lf, ok := ud.Value.(*luaFile)
	if !ok {
		L.ArgError(1, "expected file")
		return nil
	}
	if lf.closed {
		L.ArgError(1, "attempt to use a closed file")
		return nil
	}
	return lf
}

// fileMetatable returns the metatable for file handles.
func (s *Sandbox) fileMetatable() *lua.LTable {
	mt := s.L.NewTable()
	index := s.L.NewTable()

	s.L.SetField(index, "read", s.L.NewFunction(func(L *lua.LState) int {
		lf := checkFile(L)
		switch L.OptString(2, "*l") {
		case "*a", "*all", "a":
			content, err := io.ReadAll(lf.r)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LString(content))
			return 1
		case "*l", "*line", "l":
			line, err := lf.r.ReadString('\n')
			if err != nil && line == "" {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(strings.TrimRight(line, "\r\n")))
			return 1
		default:
			L.ArgError(2, "invalid format")
			return 0
		}
	}))

	s.L.SetField(index, "lines", s.L.NewFunction(func(L *lua.LState) int {
		lf := checkFile(L)
		content, err := io.ReadAll(lf.r)
		if err != nil {
			L.RaiseError("cannot read file: %s", err.Error())
			return 0
		}
		L.Push(linesIterator(L, splitLines(string(content))))
		return 1
	}))

	s.L.SetField(index, "write", s.L.NewFunction(func(L *lua.LState) int {
		lf := checkFile(L)
		for i := 2; i <= L.GetTop(); i++ {
			if _, err := lf.f.WriteString(L.CheckString(i)); err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
		}
		L.Push(L.Get(1))
		return 1
	}))

	s.L.SetField(index, "close", s.L.NewFunction(func(L *lua.LState) int {
		lf := checkFile(L)
		if err := s.release(lf); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	s.L.SetField(mt, "__index", index)
	return mt
}

// splitLines splits a string into lines.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// injectOS installs a limited os module.
func (s *Sandbox) injectOS() {
	if s.capabilities[CapabilityUnsafe] {
		return
	}
	osMod, ok := s.L.GetGlobal("os").(*lua.LTable)
	if !ok {
		osMod = s.L.NewTable()
	}

	s.L.SetField(osMod, "getenv", s.L.NewFunction(func(L *lua.LState) int {
		value, ok := os.LookupEnv(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(value))
		return 1
	}))

	s.L.SetField(osMod, "time", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))

	s.L.SetField(osMod, "clock", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Since(s.start).Seconds()))
		return 1
	}))

	if osMod.RawGetString("execute") == lua.LNil {
		s.L.SetField(osMod, "execute", s.L.NewFunction(func(L *lua.LState) int {
			L.RaiseError("os.execute requires process.spawn capability")
			return 0
		}))
	}

	s.L.SetGlobal("os", osMod)
}

// injectExecute installs os.execute, which runs a command through the shell
// and stops it when the run is cancelled.
func (s *Sandbox) injectExecute() {
	if s.capabilities[CapabilityUnsafe] {
		return
	}
	osMod, ok := s.L.GetGlobal("os").(*lua.LTable)
	if !ok {
		return
	}

	s.L.SetField(osMod, "execute", s.L.NewFunction(func(L *lua.LState) int {
		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", L.CheckString(1))
		cmd.Stdout = s.output
		cmd.Stderr = s.output

		err := cmd.Run()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			L.Push(lua.LTrue)
			L.Push(lua.LString("exit"))
			L.Push(lua.LNumber(0))
		case errors.As(err, &exitErr):
			L.Push(lua.LNil)
			L.Push(lua.LString("exit"))
			L.Push(lua.LNumber(exitErr.ExitCode()))
		default:
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			L.Push(lua.LNumber(-1))
		}
		return 3
	}))
}

// injectUnsafeLibraries opens all standard Lua libraries and restores the
// loaders removed by Install. Only for trusted plugins.
func (s *Sandbox) injectUnsafeLibraries() {
	lua.OpenIo(s.L)
	lua.OpenOs(s.L)
	lua.OpenDebug(s.L)
	for name, fn := range s.removed {
		s.L.SetGlobal(name, fn)
	}
}
