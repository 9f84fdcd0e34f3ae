package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shiwa/timecard-mini/dgtclock/internal/config"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
	"github.com/shiwa/timecard-mini/dgtclock/pkg/clockd"
)

// newRunCmd — "dgtclock run": демон до SIGINT/SIGTERM.
func newRunCmd() *cobra.Command {
	var (
		configPath string
		port       string
		baud       int
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clock daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Devices.Serial.Port = port
			}
			if baud != 0 {
				cfg.Devices.Serial.Baud = baud
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					logger.Info("получен сигнал %v, завершение...", sig)
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := clockd.RunDaemon(ctx, cfg, path, quiet); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "путь к YAML конфигу (по умолчанию dgtclock.yml, если есть)")
	cmd.Flags().StringVar(&port, "port", "", "последовательный порт доски (переопределяет config)")
	cmd.Flags().IntVar(&baud, "baud", 0, "скорость порта (переопределяет config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "меньше вывода")
	return cmd
}

// loadConfig читает конфиг; без явного пути и без dgtclock.yml — значения по умолчанию.
// Возвращает путь файла для перечитывания ("" — файла нет).
func loadConfig(path string) (*config.Config, string, error) {
	explicit := path != ""
	if !explicit {
		path = "dgtclock.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, "", fmt.Errorf("config %s: not found", path)
		}
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("config: %w", err)
	}
	return cfg, path, nil
}
