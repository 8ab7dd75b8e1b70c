// Package server 提供 SQL 血缘分析的 HTTP 接口
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/naming"
	"sql-flow-analyzer/internal/renderer"
)

// DefaultPushInterval WebSocket 推送间隔
const DefaultPushInterval = 500 * time.Millisecond

// Config 服务配置
type Config struct {
	Addr         string
	Extractor    *analyzer.Extractor
	Classifier   *naming.Classifier // 为空时使用默认规则
	HTML         renderer.HTMLOptions
	Logger       *slog.Logger
	PushInterval time.Duration
}

// Server 分析服务
type Server struct {
	addr      string
	extractor *analyzer.Extractor
	mermaid   *renderer.MermaidRenderer
	markdown  *renderer.MarkdownRenderer
	html      *renderer.HTMLRenderer
	logger    *slog.Logger
	interval  time.Duration
	upgrader  websocket.Upgrader

	tasks   map[string]*Task
	tasksMu sync.RWMutex
}

// New 创建服务
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = analyzer.NewExtractor(analyzer.WithLogger(cfg.Logger))
	}
	classifier := naming.DefaultClassifier()
	if cfg.Classifier != nil {
		classifier = *cfg.Classifier
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}
	if cfg.HTML == (renderer.HTMLOptions{}) {
		cfg.HTML = renderer.DefaultHTMLOptions()
	}

	return &Server{
		addr:      cfg.Addr,
		extractor: cfg.Extractor,
		mermaid:   renderer.NewMermaidRenderer(classifier),
		markdown:  renderer.NewMarkdownRenderer(classifier),
		html:      renderer.NewHTMLRenderer(cfg.HTML),
		logger:    cfg.Logger,
		interval:  cfg.PushInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许跨域
			},
		},
		tasks: make(map[string]*Task),
	}
}

// Routes 注册路由
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/preview", s.handlePreview)
		r.Get("/task/{id}", s.handleTaskStatus)
		r.Get("/diagram/{id}", s.handleDiagram)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// Serve 启动服务，ctx 取消后优雅退出
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("starting server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
