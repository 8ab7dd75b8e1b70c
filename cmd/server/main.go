package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/config"
	"sql-flow-analyzer/internal/server"
)

func main() {
	flags := pflag.NewFlagSet("sql-flow-server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "配置文件 (默认 ./sqlflow.yaml)")
	flags.String("addr", config.DefaultAddr, "监听地址")
	flags.String("log-level", config.DefaultLogLevel, "日志级别")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		log.Fatal(err)
	}

	logger := cfg.Logger(os.Stderr)
	classifier := cfg.TableClassifier()

	srv := server.New(server.Config{
		Addr: cfg.Server.Addr,
		Extractor: analyzer.NewExtractor(
			analyzer.WithConventions(cfg.NamingConventions()),
			analyzer.WithLogger(logger),
		),
		Classifier: &classifier,
		HTML:       cfg.HTMLOptions(),
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 SQL Flow Analyzer Web Server\n")
	fmt.Printf("📡 服务地址: http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("📊 POST /api/analyze 提交 SQL 开始分析\n\n")

	if err := srv.Serve(ctx); err != nil {
		log.Fatal(err)
	}
}
