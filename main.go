package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wildcard-party-be/internal/api/http"
	"wildcard-party-be/internal/config"
	"wildcard-party-be/internal/logger"
	"wildcard-party-be/internal/service"
	"wildcard-party-be/internal/service/game"
	"wildcard-party-be/internal/service/registry"
	"wildcard-party-be/internal/state"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const releaseVersion = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wildcard-party-be",
		Short:   "Room server for a phone-based drinking party game.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 加载配置
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			// 初始化日志器
			if err := logger.InitLogger(cfg.LogLevel); err != nil {
				return err
			}
			defer logger.Sync()

			return run(cmd.Context(), cfg)
		},
	}

	config.BindFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wildcard-party-be v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			zap.L().Warn("关闭房间存储失败", zap.Error(err))
		}
	}()

	reg := registry.New(store, registry.Options{CodeAttempts: cfg.Registry.CodeAttempts})

	presence := game.NewPresenceTracker(reg, game.PresenceOptions{
		Timeout:   cfg.Presence.Timeout,
		HostGrace: cfg.Presence.HostGrace,
	})
	coord := game.NewCoordinator(reg, presence, game.CoordinatorOptions{})

	roomSvc := service.NewRoomService(reg, coord, cfg.Presence.SweepInterval)
	defer roomSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, roomSvc)

	zap.L().Info(
		"启动房间服务",
		zap.String("version", releaseVersion),
		zap.String("storage", cfg.Storage.Driver),
	)

	// 启动服务器
	return http.RunServer(ctx, appState)
}

func openStore(cfg config.StorageConfig) (registry.Store, error) {
	switch cfg.Driver {
	case config.STORAGE_SQLITE:
		return registry.OpenSQLite(cfg.SQLitePath)
	default:
		return registry.NewMemoryStore(), nil
	}
}
