// Package status 提供池运行状态的只读 HTTP 接口。
package status

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"yqhp/taskqueue/internal/task"
	"yqhp/taskqueue/pkg/logger"
	"yqhp/taskqueue/pkg/types"
)

// Pool 是状态接口读取的池视图，*topology.Pool 实现了它。
type Pool interface {
	ID() string
	Snapshots() []types.WorkerSnapshot
}

// Catalog 列出可解析的任务，*task.Resolver 实现了它。
type Catalog interface {
	Catalog() ([]task.Entry, error)
}

// Config 是状态服务配置。
type Config struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Address:      ":9190",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server 是状态 HTTP 服务。
type Server struct {
	app     *fiber.App
	config  *Config
	pool    Pool
	catalog Catalog
	metrics http.Handler
	started time.Time
	log     *zap.Logger
}

// ErrorResponse 是错误响应。
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse 是健康检查响应。
type HealthResponse struct {
	Status string  `json:"status"`
	Pool   string  `json:"pool,omitempty"`
	Uptime float64 `json:"uptime_seconds"`
}

// WorkersResponse 列出 worker 快照。
type WorkersResponse struct {
	Pool    string                 `json:"pool"`
	Workers []types.WorkerSnapshot `json:"workers"`
}

// TasksResponse 列出可解析的任务。
type TasksResponse struct {
	Tasks []task.Entry `json:"tasks"`
}

// NewServer 创建状态服务。metrics 为 nil 时不注册 /metrics。
func NewServer(config *Config, pool Pool, catalog Catalog, metrics http.Handler) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		ErrorHandler:          errorHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		AppName:               "taskqueue status",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:     app,
		config:  config,
		pool:    pool,
		catalog: catalog,
		metrics: metrics,
		started: time.Now(),
		log:     logger.Named("status"),
	}

	s.app.Use(fiberrecover.New(fiberrecover.Config{EnableStackTrace: true}))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.health)
	api.Get("/workers", s.workers)
	api.Get("/tasks", s.tasks)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics))
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Seconds(),
	}
	if s.pool != nil {
		resp.Pool = s.pool.ID()
	}
	return c.JSON(resp)
}

func (s *Server) workers(c *fiber.Ctx) error {
	if s.pool == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "pool not ready")
	}
	return c.JSON(WorkersResponse{
		Pool:    s.pool.ID(),
		Workers: s.pool.Snapshots(),
	})
}

func (s *Server) tasks(c *fiber.Ctx) error {
	if s.catalog == nil {
		return c.JSON(TasksResponse{Tasks: []task.Entry{}})
	}
	entries, err := s.catalog.Catalog()
	if err != nil {
		s.log.Warn("list tasks failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []task.Entry{}
	}
	return c.JSON(TasksResponse{Tasks: entries})
}

// Start 监听配置的地址，直到 ctx 取消后关闭服务。
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("address", s.config.Address))
		errCh <- s.app.Listen(s.config.Address)
	}()

	select {
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	case err := <-errCh:
		return err
	}
}

// App 返回底层 fiber 应用。
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
