package piclock

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus — транзакции с контроллером часов на шине I2C.
type Bus interface {
	// Tx пишет w и затем читает len(r) байт.
	Tx(w, r []byte) error
	Close() error
}

// OpenFunc открывает шину часов.
type OpenFunc func(bus string, addr uint16) (Bus, error)

type periphBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenBus инициализирует драйверы periph и открывает устройство addr на шине bus ("/dev/i2c-1", "1" или "").
func OpenBus(bus string, addr uint16) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("i2c open %s: %w", bus, err)
	}
	return &periphBus{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

func (p *periphBus) Tx(w, r []byte) error {
	return p.dev.Tx(w, r)
}

func (p *periphBus) Close() error {
	return p.bus.Close()
}
