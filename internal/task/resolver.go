package task

import "fmt"

// Resolver 把任务名称解析为可执行任务。
// 本地注册表总是优先；只有启用自动发现且注册表未命中时，才按声明顺序查询发现源。
type Resolver struct {
	registry     Source
	autoDiscover bool
	discovery    []Source
}

// NewResolver 创建一个任务解析器。
func NewResolver(registry Source, autoDiscover bool, discovery ...Source) *Resolver {
	sources := make([]Source, 0, len(discovery))
	for _, s := range discovery {
		if s != nil {
			sources = append(sources, s)
		}
	}
	return &Resolver{
		registry:     registry,
		autoDiscover: autoDiscover,
		discovery:    sources,
	}
}

// AutoDiscover 返回是否启用了自动发现。
func (r *Resolver) AutoDiscover() bool {
	return r.autoDiscover
}

// Resolve 按名称解析任务，找不到时返回 ErrCodeNotFound 错误。
func (r *Resolver) Resolve(name string) (Func, error) {
	fn, _, err := r.resolve(name)
	return fn, err
}

// resolve 同时返回命中的来源名称。
func (r *Resolver) resolve(name string) (Func, string, error) {
	if r.registry != nil {
		if fn, ok := r.registry.Lookup(name); ok {
			return fn, r.registry.Name(), nil
		}
	}

	if r.autoDiscover {
		for _, source := range r.discovery {
			if fn, ok := source.Lookup(name); ok {
				return fn, source.Name(), nil
			}
		}
	}

	return nil, "", NewNotFoundError(name)
}

// Entry 是任务目录中的一项。
type Entry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Catalog 按解析顺序列出可枚举来源中的任务，同名任务只保留最先命中的来源。
// 未启用自动发现时只列出注册表。
func (r *Resolver) Catalog() ([]Entry, error) {
	sources := make([]Source, 0, len(r.discovery)+1)
	if r.registry != nil {
		sources = append(sources, r.registry)
	}
	if r.autoDiscover {
		sources = append(sources, r.discovery...)
	}

	seen := make(map[string]bool)
	var entries []Entry
	for _, source := range sources {
		names, err := listNames(source)
		if err != nil {
			return entries, fmt.Errorf("list %s tasks: %w", source.Name(), err)
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, Entry{Name: name, Source: source.Name()})
		}
	}
	return entries, nil
}

// listNames 枚举来源中的任务名，不可枚举的来源返回空列表。
func listNames(source Source) ([]string, error) {
	switch s := source.(type) {
	case interface{ Names() []string }:
		return s.Names(), nil
	case interface{ Names() ([]string, error) }:
		return s.Names()
	default:
		return nil, nil
	}
}
