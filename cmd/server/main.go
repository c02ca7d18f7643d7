package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/tap-game/internal/adapter"
	"github.com/wfunc/tap-game/internal/api"
	"github.com/wfunc/tap-game/internal/config"
	"github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/service"
	"github.com/wfunc/tap-game/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store    adapter.GameStore
	services *service.Services
	hub      *websocket.Hub
	http     *http.Server

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)
	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动点击游戏服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.addr()),
		zap.Bool("websocket", s.hub != nil),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	store, err := adapter.NewStore(&s.cfg.Database)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化存储失败")
	}
	s.store = store
	s.logger.Info("存储初始化完成",
		zap.String("type", string(store.Type())),
		zap.String("driver", s.cfg.Database.Driver))

	s.services = service.NewServices(s.cfg, store, logger.GetModuleLogger("game"))

	// 默认玩家
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	created, err := s.services.Game.EnsurePlayer(ctx, s.cfg.Game.GuestPlayer)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "创建默认玩家失败")
	}
	if created {
		s.logger.Info("已创建默认玩家", zap.String("player_id", s.cfg.Game.GuestPlayer))
	}

	if s.cfg.WebSocket.Enabled {
		s.hub = websocket.NewHub(websocket.SettingsFromConfig(&s.cfg.WebSocket), logger.GetModuleLogger("websocket"))
		s.hub.SetStateProvider(s.services.Game)
		s.services.Game.SetNotifier(s.hub)
	}

	switch s.cfg.Server.Mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := api.NewRouter(&api.RouterConfig{
		Services:      s.services,
		Hub:           s.hub,
		WebSocketPath: s.cfg.WebSocket.Path,
		Logger:        logger.GetModuleLogger("http"),
	})

	s.http = &http.Server{
		Addr:         s.addr(),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	if s.hub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Run()
		}()
	}

	errCh := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 端口占用等错误会立即返回
	select {
	case err := <-errCh:
		return err
	case <-time.After(200 * time.Millisecond):
	}

	go func() {
		select {
		case err := <-errCh:
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			s.signalShutdown()
		case <-s.ctx.Done():
		}
	}()

	s.logger.Info("所有服务启动完成")
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
		s.signalShutdown()
	case <-s.shutdownCh:
	}
}

func (s *Server) signalShutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}
	if s.hub != nil {
		s.hub.Stop()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := s.closeComponents(); err != nil {
		s.logger.Error("关闭组件失败", zap.Error(err))
		return err
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() error {
	s.logger.Info("关闭组件...")

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("关闭存储失败", zap.Error(err))
		}
	}

	s.logger.Info("所有组件已关闭")
	return nil
}

// reloadConfig 重新加载配置，只有日志级别支持热更新
func (s *Server) reloadConfig(newCfg *config.Config) {
	if newCfg.Log.Level != logger.Level() {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}

	s.logger.Info("配置重新加载完成")
}

func (s *Server) addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("点击游戏服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("点击游戏服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  tap-game-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  TAP_GAME_<SECTION>_<KEY>  覆盖配置项，例如 TAP_GAME_SERVER_PORT=8080")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  tap-game-server -config=/path/to/config.yaml")
	fmt.Println("  tap-game-server -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Tap Game 服务器 %s\n", Version)
	fmt.Printf("  模式: %s | 存储: %s | PID: %d\n", cfg.Server.Mode, cfg.Database.Driver, os.Getpid())
	fmt.Printf("  配置文件: %s\n", config.ConfigFileUsed())
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
