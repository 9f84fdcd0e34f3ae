// Package clockd собирает демон часов: диспетчер, драйверы ser/i2c/web, HTTP API, mDNS и перечитывание конфига.
package clockd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/shiwa/timecard-mini/dgtclock/internal/config"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dispatch"
	"github.com/shiwa/timecard-mini/dgtclock/internal/lockfile"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
	"github.com/shiwa/timecard-mini/dgtclock/internal/mdns"
	"github.com/shiwa/timecard-mini/dgtclock/internal/menu"
	"github.com/shiwa/timecard-mini/dgtclock/internal/piclock"
	"github.com/shiwa/timecard-mini/dgtclock/internal/serclock"
	"github.com/shiwa/timecard-mini/dgtclock/internal/webclock"
)

// runner — драйвер со своим циклом ввода-вывода.
type runner interface {
	dispatch.Driver
	Run(ctx context.Context) error
}

// Daemon — собранный демон.
type Daemon struct {
	cfg     *config.Config
	menu    *menu.State
	disp    *dispatch.Dispatcher
	runners []runner
	web     *webclock.Server
}

// New создаёт диспетчер и включённые в cfg драйверы и регистрирует их. Порты и шины открываются в Run.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	m := menu.New()
	d := &Daemon{
		cfg:  cfg,
		menu: m,
		disp: dispatch.New(m, dispatch.Options{
			TimeFactor:       cfg.Dispatcher.TimeFactor,
			Greeting:         cfg.Dispatcher.Greeting,
			GreetingDuration: cfg.GreetingDuration(),
		}),
	}

	dev := cfg.Devices
	if dev.Serial.Enable {
		d.runners = append(d.runners, serclock.New(serclock.Options{
			Port:           dev.Serial.Port,
			Baud:           dev.Serial.Baud,
			WriteRate:      dev.Serial.WriteRate,
			RevelationLEDs: dev.Serial.RevelationLEDs,
			DisableEnd:     dev.Serial.DisableEnd,
		}, d.disp.Submit))
	}
	if dev.I2C.Enable {
		d.runners = append(d.runners, piclock.New(piclock.Options{
			Bus:          dev.I2C.Bus,
			Addr:         dev.I2C.Addr,
			PollInterval: cfg.PollInterval(),
		}, d.disp.Submit))
	}
	for _, r := range d.runners {
		if err := d.disp.Register(r); err != nil {
			return nil, err
		}
	}
	if dev.Web.Enable {
		d.web = webclock.NewServer(webclock.ServerOptions{
			Listen:      dev.Web.Listen,
			CommandRate: dev.Web.CommandRate,
		}, d.disp, m)
		if err := d.disp.Register(d.web.Clock()); err != nil {
			return nil, err
		}
	}
	if len(d.disp.Devices()) == 0 {
		return nil, errors.New("no device enabled")
	}
	return d, nil
}

// Dispatcher — диспетчер демона.
func (d *Daemon) Dispatcher() *dispatch.Dispatcher { return d.disp }

// Listen открывает сокет HTTP API (если web включён); после него известен WebPort.
func (d *Daemon) Listen() error {
	if d.web == nil || d.web.Port() != 0 {
		return nil
	}
	return d.web.Listen()
}

// WebPort — порт HTTP API; 0, если web выключен или сокет ещё не открыт.
func (d *Daemon) WebPort() int {
	if d.web == nil {
		return 0
	}
	return d.web.Port()
}

// Run работает до отмены ctx. configPath != "" — конфиг перечитывается при изменении файла.
func (d *Daemon) Run(ctx context.Context, configPath string) error {
	if err := d.Listen(); err != nil {
		return err
	}

	if d.web != nil && d.cfg.Devices.Web.MDNS {
		adv := mdns.NewAdvertiser(mdns.Config{
			Port:    d.web.Port(),
			Name:    d.cfg.Devices.Web.Name,
			Devices: d.disp.Devices(),
		})
		if err := adv.Start(); err != nil {
			logger.Warn("%v", err)
		} else {
			logger.Info("mdns: %s on port %d", mdns.ServiceType, d.web.Port())
			defer adv.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.disp.Run(gctx) })
	for _, r := range d.runners {
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", r.Name(), err)
			}
			return nil
		})
	}
	if d.web != nil {
		g.Go(func() error { return d.web.Serve(gctx) })
	}
	if configPath != "" {
		g.Go(func() error { return config.Watch(gctx, configPath, d.apply) })
	}
	logger.Info("dgtclock running, devices %v", d.disp.Devices())
	return g.Wait()
}

// apply применяет на лету то, что можно менять без перезапуска.
func (d *Daemon) apply(cfg *config.Config) {
	d.disp.SetTimeFactor(cfg.Dispatcher.TimeFactor)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Warn("log.level: %v", err)
	}
	logger.Info("config reloaded: time_factor %v, log level %s", d.disp.TimeFactor(), logger.Level())
}

// RunDaemon берёт блокировку экземпляра, настраивает логи и запускает демон до отмены ctx.
func RunDaemon(ctx context.Context, cfg *config.Config, configPath string, quiet bool) error {
	if cfg == nil {
		cfg = config.Default()
	}
	logger.Quiet = quiet
	logger.SetOutput(os.Stderr, cfg.Log.JSON)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	lock, err := lockfile.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release lock: %v", err)
		}
	}()

	d, err := New(cfg)
	if err != nil {
		return err
	}
	return d.Run(ctx, configPath)
}
