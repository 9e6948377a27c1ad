package registry

import (
	"context"
	"sync"

	"github.com/strata-labs/docguard/internal/core"
)

// BindHook is notified when tables are bound to or unbound from the
// validation layer. Hooks run synchronously during Bind/Unbind; an
// error from a bind hook fails the bind.
type BindHook interface {
	// OnBind is called while a table is being bound.
	OnBind(ctx context.Context, table string, schema *core.Schema) error

	// OnUnbind is called after a table has been unbound.
	OnUnbind(ctx context.Context, table string, schema *core.Schema) error
}

// BindHookFunc adapts plain functions to the BindHook interface. Nil
// members are no-ops.
type BindHookFunc struct {
	OnBindFunc   func(ctx context.Context, table string, schema *core.Schema) error
	OnUnbindFunc func(ctx context.Context, table string, schema *core.Schema) error
}

// OnBind calls OnBindFunc when set.
func (f BindHookFunc) OnBind(ctx context.Context, table string, schema *core.Schema) error {
	if f.OnBindFunc != nil {
		return f.OnBindFunc(ctx, table, schema)
	}
	return nil
}

// OnUnbind calls OnUnbindFunc when set.
func (f BindHookFunc) OnUnbind(ctx context.Context, table string, schema *core.Schema) error {
	if f.OnUnbindFunc != nil {
		return f.OnUnbindFunc(ctx, table, schema)
	}
	return nil
}

// HookManager holds registered bind hooks and executes them in
// registration order.
type HookManager struct {
	mu    sync.RWMutex
	hooks []BindHook
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{}
}

// Register adds a hook. Hooks execute in the order they were added.
func (m *HookManager) Register(hook BindHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// ExecuteBindHooks runs all bind hooks; the first error stops the run.
func (m *HookManager) ExecuteBindHooks(ctx context.Context, table string, schema *core.Schema) error {
	for _, hook := range m.snapshot() {
		if err := hook.OnBind(ctx, table, schema); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteUnbindHooks runs all unbind hooks; the first error stops the
// run.
func (m *HookManager) ExecuteUnbindHooks(ctx context.Context, table string, schema *core.Schema) error {
	for _, hook := range m.snapshot() {
		if err := hook.OnUnbind(ctx, table, schema); err != nil {
			return err
		}
	}
	return nil
}

func (m *HookManager) snapshot() []BindHook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hooks := make([]BindHook, len(m.hooks))
	copy(hooks, m.hooks)
	return hooks
}

// Count returns the number of registered hooks.
func (m *HookManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}
