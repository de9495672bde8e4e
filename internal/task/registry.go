package task

import (
	"sort"
	"sync"
)

// Source 按名称查找任务，注册表和发现源都实现该接口。
type Source interface {
	// Name 返回来源名称，用于日志。
	Name() string

	// Lookup 按名称查找任务。
	Lookup(name string) (Func, bool)
}

// Registry 管理任务的注册和查找。
// 同名任务重复注册时以最后一次为准。
type Registry struct {
	name  string
	tasks map[string]Func
	mu    sync.RWMutex
}

// NewRegistry 创建一个新的任务注册表。
func NewRegistry() *Registry {
	return newNamedRegistry("registry")
}

func newNamedRegistry(name string) *Registry {
	return &Registry{
		name:  name,
		tasks: make(map[string]Func),
	}
}

// Name 返回注册表名称。
func (r *Registry) Name() string {
	return r.name
}

// Register 注册或覆盖给定名称的任务。
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return NewInvalidError(name, "任务名称不能为空")
	}
	if fn == nil {
		return NewInvalidError(name, "不能注册空任务: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = fn
	return nil
}

// MustRegister 注册任务，如果出错则 panic。
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Unregister 移除给定名称的任务。
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, name)
}

// Lookup 按名称查找任务。
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// Has 检查给定名称是否已注册。
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names 返回所有已注册的任务名称（已排序）。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count 返回已注册任务的数量。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// DefaultRegistry 是全局默认任务注册表。
// 任务包在 init() 中注册到这里，再通过空白导入引入，作为自动发现的进程内来源。
var DefaultRegistry = newNamedRegistry("default")

// Register 在默认注册表中注册任务。
func Register(name string, fn Func) error {
	return DefaultRegistry.Register(name, fn)
}

// MustRegister 在默认注册表中注册任务，如果出错则 panic。
func MustRegister(name string, fn Func) {
	DefaultRegistry.MustRegister(name, fn)
}
