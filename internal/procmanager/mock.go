package procmanager

import (
	"context"
	"sync"
	"syscall"
)

// ProcessManagerCall records one invocation against MockProcessManager,
// for tests that assert on call sequencing (e.g. "Start was called with
// these args before Signal(SIGTERM)").
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
	PID    int
	Signal syscall.Signal
}

// MockProcessManager is a test double recording every call. Each *Func
// field, if set, is invoked to compute the return value; otherwise a
// zero-value/default response is returned.
type MockProcessManager struct {
	mu    sync.Mutex
	calls []ProcessManagerCall

	StartFunc     func(ctx context.Context, name string, args []string, dir string, env []string) (int, error)
	IsRunningFunc func(pid int) bool
	SignalFunc    func(pid int, sig syscall.Signal) error
	WaitFunc      func(pid int) (int, error)

	nextPID int
}

func (m *MockProcessManager) record(c ProcessManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of every call recorded so far, in order.
func (m *MockProcessManager) Calls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProcessManagerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls, for reuse across subtests.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockProcessManager) Start(ctx context.Context, name string, args []string, dir string, env []string) (int, error) {
	m.record(ProcessManagerCall{Method: "Start", Name: name, Args: args})
	if m.StartFunc != nil {
		return m.StartFunc(ctx, name, args, dir, env)
	}
	m.mu.Lock()
	m.nextPID++
	pid := m.nextPID
	m.mu.Unlock()
	return pid, nil
}

func (m *MockProcessManager) IsRunning(pid int) bool {
	m.record(ProcessManagerCall{Method: "IsRunning", PID: pid})
	if m.IsRunningFunc != nil {
		return m.IsRunningFunc(pid)
	}
	return true
}

func (m *MockProcessManager) Signal(pid int, sig syscall.Signal) error {
	m.record(ProcessManagerCall{Method: "Signal", PID: pid, Signal: sig})
	if m.SignalFunc != nil {
		return m.SignalFunc(pid, sig)
	}
	return nil
}

func (m *MockProcessManager) Wait(pid int) (int, error) {
	m.record(ProcessManagerCall{Method: "Wait", PID: pid})
	if m.WaitFunc != nil {
		return m.WaitFunc(pid)
	}
	return 0, nil
}

var _ ProcessManager = (*MockProcessManager)(nil)
