package piclock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
)

// Кнопки часов (маска регистра regButtons)
const (
	button0     = 0x01
	button1     = 0x02
	button2     = 0x04
	button3     = 0x08
	button4     = 0x10
	buttonOnOff = 0x20
	lever       = 0x40
)

var buttonNames = map[byte]string{
	button0:           "button 0",
	button1:           "button 1",
	button2:           "button 2",
	button3:           "button 3",
	button4:           "button 4",
	button0 | button4: "button 0+4",
	lever:             "lever",
}

// timeEvery — время читается на каждом пятом опросе.
const timeEvery = 5

// Run открывает шину, объявляет часы (версия 2.2) и опрашивает кнопки и время до отмены ctx.
func (c *Clock) Run(ctx context.Context) error {
	if err := c.init(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer c.close()

	if c.submit != nil {
		c.submit(command.New(command.ClockVersion{Main: 2, Sub: 2, Variant: "dgtpi"}, command.To(command.DeviceI2C)))
	}
	log.Info("incoming_clock ready")

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	counter := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		c.pollButtons()
		counter = (counter + 1) % timeEvery
		if counter == 0 {
			c.pollTime()
		}
	}
}

// init открывает шину и настраивает часы; пока контроллер не отвечает — повторяет.
func (c *Clock) init(ctx context.Context) error {
	b := backoff.NewConstantBackOff(500 * time.Millisecond)
	op := func() error {
		bus, err := c.open(c.opts.Bus, c.opts.Addr)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.bus = bus
		err = c.configure()
		c.mu.Unlock()
		if err != nil {
			// шина открыта, часы не отвечают: идём дальше, команды сами попробуют configure
			log.Warn("configure failed - jack connected back? %v", err)
		}
		return nil
	}
	notify := func(err error, _ time.Duration) {
		log.Warn("init failed - jack half connected? %v", err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

func (c *Clock) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus != nil {
		_ = c.bus.Close()
		c.bus = nil
	}
}

func (c *Clock) pollButtons() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus == nil {
		return
	}
	var b [1]byte
	if err := c.bus.Tx([]byte{regButtons}, b[:]); err != nil {
		log.Warn("GetButtonMessage returned error %v", err)
		return
	}
	mask := b[0]
	if mask == 0 {
		return
	}
	if mask == buttonOnOff {
		log.Info("clock button on/off pressed")
		if err := c.configure(); err != nil {
			log.Warn("configure after on/off failed %v", err)
		}
		return
	}
	name, ok := buttonNames[mask]
	if !ok {
		log.Debug("clock buttons %#x pressed", mask)
		return
	}
	log.Info("clock %s pressed", name)
}

func (c *Clock) pollTime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus == nil {
		return
	}
	var t [6]byte
	if err := c.bus.Tx([]byte{regTime}, t[:]); err != nil {
		log.Warn("GetTime returned error %v", err)
		return
	}
	c.left = int(t[0])*3600 + int(t[1])*60 + int(t[2])
	c.right = int(t[3])*3600 + int(t[4])*60 + int(t[5])
	log.Debug("clock new time received l:%v r:%v", t[:3], t[3:])
}
