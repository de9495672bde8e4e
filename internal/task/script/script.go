// Package script 提供基于 JavaScript 文件的任务发现源。
//
// 任务 name 对应目录下的 name.js 文件。脚本以全局变量 kwargs 接收参数；
// 如果脚本定义了全局函数 run，则在脚本求值后以 kwargs 调用它。
// 脚本抛出的异常作为任务错误返回。
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/pkg/logger"
)

const (
	// Ext 是脚本任务文件扩展名。
	Ext = ".js"

	defaultTimeout = 30 * time.Second
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)

// Source 在目录中按名称查找 JS 任务。
type Source struct {
	dir     string
	timeout time.Duration
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]*compiled
}

type compiled struct {
	program *goja.Program
	modTime time.Time
}

// NewSource 创建脚本发现源，timeout <= 0 时使用 30s。
func NewSource(dir string, timeout time.Duration, log *zap.Logger) *Source {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Named("script")
	}
	return &Source{
		dir:     dir,
		timeout: timeout,
		log:     log,
		cache:   make(map[string]*compiled),
	}
}

// Name 返回来源名称。
func (s *Source) Name() string {
	return "script"
}

// Lookup 查找 name.js 并编译，文件不存在或编译失败时返回 false。
func (s *Source) Lookup(name string) (task.Func, bool) {
	program, err := s.load(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("load script failed", zap.String("task", name), zap.Error(err))
		}
		return nil, false
	}
	return s.bind(name, program), true
}

// Names 列出目录中所有可用的脚本任务名称。
func (s *Source) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("读取脚本目录失败: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), Ext)
		if validName.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Source) load(name string) (*goja.Program, error) {
	if s.dir == "" {
		return nil, os.ErrNotExist
	}
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return nil, os.ErrNotExist
	}

	path := filepath.Join(s.dir, name+Ext)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, os.ErrNotExist
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[name]; ok && c.modTime.Equal(info.ModTime()) {
		return c.program, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	program, err := goja.Compile(name+Ext, string(src), false)
	if err != nil {
		return nil, fmt.Errorf("编译脚本失败: %w", err)
	}
	s.cache[name] = &compiled{program: program, modTime: info.ModTime()}
	return program, nil
}

// bind 把编译好的脚本包装为任务。每次调用使用独立的 goja 运行时。
func (s *Source) bind(name string, program *goja.Program) task.Func {
	return func(ctx context.Context, kwargs task.Kwargs) error {
		vm := goja.New()
		if err := s.setupEnvironment(vm, name, kwargs); err != nil {
			return fmt.Errorf("初始化脚本环境失败: %w", err)
		}

		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-runCtx.Done():
				vm.Interrupt(runCtx.Err())
			case <-done:
			}
		}()

		if _, err := vm.RunProgram(program); err != nil {
			return scriptError(runCtx, err)
		}

		if run, ok := goja.AssertFunction(vm.Get("run")); ok {
			if _, err := run(goja.Undefined(), vm.Get("kwargs")); err != nil {
				return scriptError(runCtx, err)
			}
		}
		return nil
	}
}

func (s *Source) setupEnvironment(vm *goja.Runtime, name string, kwargs task.Kwargs) error {
	if kwargs == nil {
		kwargs = task.Kwargs{}
	}
	if err := vm.Set("kwargs", map[string]any(kwargs)); err != nil {
		return err
	}

	log := s.log.With(zap.String("task", name))
	printer := func(fn func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			fn(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := vm.NewObject()
	if err := console.Set("log", printer(log.Info)); err != nil {
		return err
	}
	if err := console.Set("info", printer(log.Info)); err != nil {
		return err
	}
	if err := console.Set("warn", printer(log.Warn)); err != nil {
		return err
	}
	if err := console.Set("error", printer(log.Error)); err != nil {
		return err
	}
	return vm.Set("console", console)
}

func scriptError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return fmt.Errorf("脚本执行被中断: %w", ctx.Err())
	}
	return fmt.Errorf("脚本执行失败: %w", err)
}
