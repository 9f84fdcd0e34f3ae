// Package mdns объявляет виртуальные часы в локальной сети (DNS-SD).
package mdns

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType — тип сервиса DNS-SD.
const ServiceType = "_dgtclock._tcp"

// ProtocolVersion — версия HTTP API в TXT записи.
const ProtocolVersion = "1"

// Config — параметры объявления.
type Config struct {
	Port    int
	Name    string   // пусто — имя хоста
	Devices []string // включённые устройства, в TXT devs=
}

// Advertiser — регистрация сервиса.
type Advertiser struct {
	config Config
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser создаёт объявление; сеть не трогает до Start.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

func (a *Advertiser) instance() string {
	if a.config.Name != "" {
		return a.config.Name
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "dgtclock"
}

// TXT — записи объявления.
func (a *Advertiser) TXT() []string {
	txt := []string{
		"version=" + ProtocolVersion,
		"name=" + a.instance(),
	}
	if len(a.config.Devices) > 0 {
		devs := a.config.Devices[0]
		for _, d := range a.config.Devices[1:] {
			devs += "," + d
		}
		txt = append(txt, "devs="+devs)
	}
	return txt
}

// Start регистрирует сервис. Повторный вызов ничего не делает.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}
	server, err := zeroconf.Register(a.instance(), ServiceType, "local.", a.config.Port, a.TXT(), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.server = server
	return nil
}

// Stop снимает регистрацию.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning — сервис зарегистрирован.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
