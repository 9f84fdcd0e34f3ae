// Package serclock — часы DGT XL и DGT 3000, подключённые через последовательный порт доски (устройство "ser").
package serclock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
)

var log = logger.Named(command.DeviceSer)

// ErrNotConnected — порт ещё не открыт или потерян.
var ErrNotConnected = errors.New("serial board not connected")

// writeTimeout — сколько ждать очереди ограничителя записи.
const writeTimeout = 2 * time.Second

// Options — параметры часов на последовательном порту.
type Options struct {
	Port           string // "auto" — первый найденный порт доски
	Baud           int
	WriteRate      float64 // кадров в секунду
	RevelationLEDs bool
	DisableEnd     bool // не слать EndText после SetNRun
}

// Clock — драйвер "ser".
type Clock struct {
	opts    Options
	submit  func(*command.Command)
	open    OpenFunc
	list    func() ([]string, error)
	limiter *rate.Limiter

	mu      sync.Mutex
	port    io.ReadWriteCloser
	left    int
	right   int
	running bool
	dgt3000 bool
}

// New создаёт драйвер. submit получает ClockVersion, когда часы представятся.
func New(opts Options, submit func(*command.Command)) *Clock {
	if opts.WriteRate <= 0 {
		opts.WriteRate = 20
	}
	if opts.Baud == 0 {
		opts.Baud = 9600
	}
	return &Clock{
		opts:    opts,
		submit:  submit,
		open:    OpenPort,
		list:    ListPorts,
		limiter: rate.NewLimiter(rate.Limit(opts.WriteRate), 4),
		left:    dgt.TimeNotSet,
		right:   dgt.TimeNotSet,
	}
}

// Name — "ser".
func (c *Clock) Name() string { return command.DeviceSer }

// ClockVersion: часы с главной версией 2 — DGT 3000 (текстовый режим ASCII).
func (c *Clock) ClockVersion(main, sub int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dgt3000 = main == 2
	log.Info("clock version %d.%d (dgt3000=%v)", main, sub, c.dgt3000)
}

// useASCII — текст на DGT 3000; с LED Revelation работаем как с XL.
func (c *Clock) useASCII() bool {
	return c.dgt3000 && !c.opts.RevelationLEDs
}

// DisplayText показывает текст: 3000 — Medium, XL — Small.
func (c *Clock) DisplayText(t command.DisplayText, beep bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useASCII() {
		text := t.Variant(command.SizeMedium)
		log.Debug("[%s]", text)
		return c.write(dgt.ASCIIText(text, beep))
	}
	text := t.Variant(command.SizeSmall)
	log.Debug("[%s]", text)
	return c.write(dgt.XLText(text, beep, dgt.XLIcons(byte(t.Icons.Left), byte(t.Icons.Right))))
}

// DisplayMove показывает ход: 3000 — SAN (или UCI), XL — UCI, разнесённый по половинам дисплея.
func (c *Clock) DisplayMove(m command.DisplayMove, beep bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useASCII() {
		return c.write(dgt.ASCIIText(m.Text(dgt.Width3000), beep))
	}
	return c.write(dgt.XLText(xlMove(m), beep, dgt.XLIcons(byte(m.Icons.Left), byte(m.Icons.Right))))
}

// xlMove — "e2 e4 " или " e2 e4" в зависимости от стороны.
func xlMove(m command.DisplayMove) string {
	from, to := m.UCI, ""
	if len(m.UCI) >= 4 {
		from, to = m.UCI[:2], m.UCI[2:]
	}
	if m.Side == command.SideRight {
		return fmt.Sprintf("%3s%3s", from, to)
	}
	return fmt.Sprintf("%-3s%-3s", from, to)
}

// DisplayTime возвращает часы к показу времени, если они идут или force.
func (c *Clock) DisplayTime(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running && !force {
		log.Debug("clock isnt running - no need for endText")
		return nil
	}
	if err := dgt.CheckTimes(c.left, c.right); err != nil {
		return err
	}
	return c.write(dgt.EndText())
}

// StartClock выставляет время и запускает сторону side.
func (c *Clock) StartClock(left, right int, side command.Side) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("clock received last time from clock l:%s r:%s", dgt.FormatHMS(c.left), dgt.FormatHMS(c.right))
	c.left, c.right = left, right
	log.Debug("clock sending start time to clock l:%s r:%s", dgt.FormatHMS(left), dgt.FormatHMS(right))
	return c.resume(side)
}

// StopClock останавливает часы на последнем известном времени.
func (c *Clock) StopClock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("clock sending stop time to clock l:%s r:%s", dgt.FormatHMS(c.left), dgt.FormatHMS(c.right))
	return c.resume(command.SideNone)
}

func (c *Clock) resume(side command.Side) error {
	run := byte(dgt.RunNone)
	switch side {
	case command.SideLeft:
		run = dgt.RunLeft
	case command.SideRight:
		run = dgt.RunRight
	}
	frame, err := dgt.SetNRun(c.left, c.right, run)
	if err != nil {
		return err
	}
	if err := c.write(frame); err != nil {
		return err
	}
	c.running = side != command.SideNone
	if c.opts.DisableEnd {
		return nil
	}
	// без EndText часть часов остаётся в текстовом режиме
	return c.write(dgt.EndText())
}

// LightSquares зажигает поля на Revelation II; без LED — ничего.
func (c *Clock) LightSquares(from, to string) error {
	if !c.opts.RevelationLEDs {
		return nil
	}
	frame, err := dgt.SetLEDs(from, to)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("(rev) leds turned on - move: %s%s", from, to)
	return c.write(frame)
}

// ClearLight гасит поля на Revelation II.
func (c *Clock) ClearLight() error {
	if !c.opts.RevelationLEDs {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("(rev) leds turned off")
	return c.write(dgt.ClearLEDs())
}

// IsClockRunning — часы идут.
func (c *Clock) IsClockRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Times — последнее известное время сторон (секунды).
func (c *Clock) Times() (left, right int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left, c.right
}

// write отправляет кадр с учётом ограничителя. Вызывается под c.mu.
func (c *Clock) write(frame []byte) error {
	if c.port == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("write rate: %w", err)
	}
	log.Debug("write % x", frame)
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}
