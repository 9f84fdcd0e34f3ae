// Package webclock — виртуальные часы в браузере (устройство "web"): состояние дисплея,
// рассылка по websocket и HTTP API демона.
package webclock

import (
	"sync"
	"time"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
)

var log = logger.Named(command.DeviceWeb)

// Режимы дисплея
const (
	ModeText = "text"
	ModeTime = "time"
)

// Display — то, что видит браузер.
type Display struct {
	Mode    string        `json:"mode"`
	Text    string        `json:"text,omitempty"`
	Icons   command.Icons `json:"icons"`
	Beep    bool          `json:"beep,omitempty"`
	Left    int           `json:"left"` // секунды, с учётом хода часов
	Right   int           `json:"right"`
	Running command.Side  `json:"running"`
	From    string        `json:"from,omitempty"` // подсвеченные поля
	To      string        `json:"to,omitempty"`
}

// Clock — драйвер "web". Время идёт от момента старта; Display пересчитывает остаток.
type Clock struct {
	broadcast func(Display)
	now       func() time.Time

	mu        sync.Mutex
	mode      string
	text      string
	icons     command.Icons
	beep      bool
	left      int
	right     int
	running   command.Side
	startedAt time.Time
	from, to  string
}

// NewClock создаёт часы; broadcast получает каждое новое состояние (может быть nil).
func NewClock(broadcast func(Display)) *Clock {
	return &Clock{
		broadcast: broadcast,
		now:       time.Now,
		mode:      ModeTime,
		left:      dgt.TimeNotSet,
		right:     dgt.TimeNotSet,
	}
}

// Name — "web".
func (c *Clock) Name() string { return command.DeviceWeb }

// DisplayText показывает полный вариант текста.
func (c *Clock) DisplayText(t command.DisplayText, beep bool) error {
	c.update(func() {
		c.mode = ModeText
		c.text = t.Variant(command.SizeLarge)
		c.icons = t.Icons
		c.beep = beep
	})
	return nil
}

// DisplayMove показывает ход.
func (c *Clock) DisplayMove(m command.DisplayMove, beep bool) error {
	c.update(func() {
		c.mode = ModeText
		c.text = m.Text(command.SizeLarge.Width())
		c.icons = m.Icons
		c.beep = beep
	})
	return nil
}

// DisplayTime возвращает дисплей к времени.
func (c *Clock) DisplayTime(force bool) error {
	c.mu.Lock()
	if c.mode == ModeTime && !force {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.update(func() {
		c.mode = ModeTime
		c.text = ""
		c.beep = false
	})
	return nil
}

// StartClock выставляет время и запускает сторону side.
func (c *Clock) StartClock(left, right int, side command.Side) error {
	if err := dgt.CheckTimes(left, right); err != nil {
		return err
	}
	c.update(func() {
		c.left, c.right = left, right
		c.running = side
		c.startedAt = c.now()
		c.mode = ModeTime
		c.text = ""
	})
	return nil
}

// StopClock фиксирует остаток времени.
func (c *Clock) StopClock() error {
	c.mu.Lock()
	if err := dgt.CheckTimes(c.left, c.right); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.update(func() {
		c.left, c.right = c.currentLocked()
		c.running = command.SideNone
	})
	return nil
}

// LightSquares подсвечивает поля хода.
func (c *Clock) LightSquares(from, to string) error {
	c.update(func() { c.from, c.to = from, to })
	return nil
}

// ClearLight гасит подсветку.
func (c *Clock) ClearLight() error {
	c.update(func() { c.from, c.to = "", "" })
	return nil
}

// IsClockRunning — идёт ли время.
func (c *Clock) IsClockRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running != command.SideNone
}

// Display — текущее состояние.
func (c *Clock) Display() Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayLocked()
}

func (c *Clock) update(fn func()) {
	c.mu.Lock()
	fn()
	d := c.displayLocked()
	c.mu.Unlock()
	log.Debug("display %s [%s] l:%s r:%s", d.Mode, d.Text, dgt.FormatHMS(d.Left), dgt.FormatHMS(d.Right))
	if c.broadcast != nil {
		c.broadcast(d)
	}
}

func (c *Clock) displayLocked() Display {
	left, right := c.currentLocked()
	return Display{
		Mode:    c.mode,
		Text:    c.text,
		Icons:   c.icons,
		Beep:    c.beep,
		Left:    left,
		Right:   right,
		Running: c.running,
		From:    c.from,
		To:      c.to,
	}
}

// currentLocked — остаток времени сторон с учётом хода.
func (c *Clock) currentLocked() (left, right int) {
	left, right = c.left, c.right
	if c.running == command.SideNone {
		return left, right
	}
	elapsed := int(c.now().Sub(c.startedAt) / time.Second)
	switch c.running {
	case command.SideLeft:
		left = max(left-elapsed, 0)
	case command.SideRight:
		right = max(right-elapsed, 0)
	}
	return left, right
}
