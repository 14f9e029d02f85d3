package lua

import lua "github.com/yuin/gopher-lua"

// DoString runs code in the state for tests that drive it directly.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.HasCapability(c) {
		return &CapabilityError{Capability: c}
	}
	return nil
}
