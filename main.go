package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/config"
	"github.com/offline-edge/offline-edge/internal/lifecycle"
	"github.com/offline-edge/offline-edge/internal/logging"
	"github.com/offline-edge/offline-edge/internal/metrics"
	"github.com/offline-edge/offline-edge/internal/proxy"
	"github.com/offline-edge/offline-edge/internal/server"
	"github.com/offline-edge/offline-edge/internal/server/routes"
	"github.com/offline-edge/offline-edge/internal/strategy"
	"github.com/offline-edge/offline-edge/internal/upstream"
	"github.com/offline-edge/offline-edge/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.App.Origin
		fields["cache_version"] = cfg.App.Version
		fields["storage_backend"] = cfg.Global.StorageBackend
		fields["precache"] = len(cfg.App.Precache)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, opts.configPath, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("offline-edge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 OFFLINE_EDGE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("OFFLINE_EDGE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// serve 按“配置 → 指标 → 命名空间存储 → 上游 → 生命周期 → Fiber”顺序装配并阻塞监听。
// 生命周期控制器在后台激活，接管前所有请求原样转发。
func serve(ctx context.Context, cfg *config.Config, configPath string, logger *logrus.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return fmt.Errorf("注册指标失败: %w", err)
	}

	store, err := cache.Open(cache.Options{
		Backend:     cfg.Global.StorageBackend,
		Path:        cfg.Global.StoragePath,
		RedisAddr:   cfg.Global.RedisAddr,
		RedisDB:     cfg.Global.RedisDB,
		RedisPrefix: cfg.Global.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("初始化命名空间存储失败: %w", err)
	}
	defer store.Close()
	manager := cache.NewManager(store, cfg.App.Version)

	fetcher, err := upstream.NewHTTPFetcher(
		upstream.NewClient(cfg.Global.UpstreamTimeout.DurationValue()),
		cfg.App.Origin,
		cfg.App.Upstream,
		cfg.App.FontOrigins,
	)
	if err != nil {
		return err
	}

	controller, err := lifecycle.NewController(lifecycle.Options{
		Manager:        manager,
		Fetcher:        fetcher,
		Manifest:       cfg.App.ResolvedPrecache(),
		Logger:         logger,
		Metrics:        recorder,
		MaxRetries:     cfg.Global.MaxRetries,
		InitialBackoff: cfg.Global.InitialBackoff.DurationValue(),
		RetryCooldown:  cfg.Global.RetryCooldown.DurationValue(),
	})
	if err != nil {
		return err
	}

	origins, err := server.NewOriginRegistry(cfg)
	if err != nil {
		return fmt.Errorf("构建 Origin 注册表失败: %w", err)
	}

	ingress, err := server.NewIngress(server.IngressOptions{
		Logger: logger,
		Classifier: strategy.NewClassifier(strategy.Rules{
			APIPrefix:    cfg.App.APIPrefix,
			SettingsPath: cfg.App.SettingsPath,
			StaticPrefix: cfg.App.StaticPrefix,
			FontOrigins:  cfg.App.FontOrigins,
		}),
		Dispatcher: proxy.NewDefaultDispatcher(logger),
		Env: &proxy.Env{
			Manager: manager,
			Writer:  cache.NewWriter(logger, recorder),
			Fetcher: fetcher,
			Keys: proxy.Keys{
				Root:         cfg.App.ResolveKey(cfg.App.RootKey),
				Offline:      cfg.App.ResolveKey(cfg.App.OfflineKey),
				DefaultImage: cfg.App.ResolveKey(cfg.App.DefaultImageKey),
			},
			Logger: logger,
		},
		Controller: controller,
		Metrics:    recorder,
	})
	if err != nil {
		return err
	}

	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   origins,
		Proxy:      ingress,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnostics(app, routes.DiagnosticsOptions{
		Version:    version.Full(),
		Manager:    manager,
		Controller: controller,
		Registry:   origins,
		Gatherer:   registry,
	})

	fields := logging.BaseFields("startup", configPath)
	fields["origin"] = cfg.App.Origin
	fields["upstream"] = cfg.App.Upstream
	fields["cache_version"] = cfg.App.Version
	fields["storage_backend"] = cfg.Global.StorageBackend
	fields["listen_port"] = port
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	go func() {
		if err := controller.Start(ctx); err != nil {
			logger.WithFields(logging.NamespaceFields("activate", manager.StaticName())).
				WithError(err).Warn("激活未完成，退出前一直原样转发")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
