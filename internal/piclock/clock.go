// Package piclock — часы DGT 3000 на шине I2C платы DGT Pi (устройство "i2c").
//
// Контроллер часов принимает те же сообщения часам, что и доска (dgt.EncodeClock),
// и отвечает байтом статуса. Кнопки и время читаются отдельными регистрами.
package piclock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
)

var log = logger.Named(command.DeviceI2C)

// Регистры контроллера
const (
	regMessage   = 0x00 // сообщение часам, ответ — статус
	regConfigure = 0x01 // перезапуск связи с часами
	regButtons   = 0x02 // маска нажатых кнопок (1 байт)
	regTime      = 0x03 // время: левые h,m,s, правые h,m,s
)

const statusOK = 0x00

// ErrNotOpen — шина ещё не открыта.
var ErrNotOpen = errors.New("i2c clock not open")

// Options — параметры часов на I2C.
type Options struct {
	Bus          string
	Addr         uint16
	PollInterval time.Duration
}

// Clock — драйвер "i2c".
type Clock struct {
	opts   Options
	submit func(*command.Command)
	open   OpenFunc

	mu      sync.Mutex
	bus     Bus
	left    int
	right   int
	running bool
}

// New создаёт драйвер. submit получает ClockVersion после инициализации шины.
func New(opts Options, submit func(*command.Command)) *Clock {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Addr == 0 {
		opts.Addr = 0x28
	}
	return &Clock{
		opts:   opts,
		submit: submit,
		open:   OpenBus,
		left:   dgt.TimeNotSet,
		right:  dgt.TimeNotSet,
	}
}

// Name — "i2c".
func (c *Clock) Name() string { return command.DeviceI2C }

// ClockVersion — часы найдены.
func (c *Clock) ClockVersion(main, sub int) {
	log.Info("clock found, version %d.%d", main, sub)
}

// textFrame — сообщение DGT Pi: 11 символов, beep, значки левой и правой половины.
func textFrame(text string, beep bool, icons command.Icons) []byte {
	b := make([]byte, 0, dgt.WidthPi+3)
	for i := 0; i < dgt.WidthPi; i++ {
		ch := byte(' ')
		if i < len(text) && text[i] >= 0x20 && text[i] <= 0x7e {
			ch = text[i]
		}
		b = append(b, ch)
	}
	beepByte := byte(0x00)
	if beep {
		beepByte = 0x03
	}
	b = append(b, beepByte, byte(icons.Left), byte(icons.Right))
	return dgt.EncodeClock(dgt.ClkASCII, b...)
}

// DisplayText показывает вариант Large (или Medium).
func (c *Clock) DisplayText(t command.DisplayText, beep bool) error {
	text := t.Variant(command.SizeLarge)
	if len(text) > dgt.WidthPi {
		log.Warn("clock message too long [%s]", text)
	}
	log.Debug("[%s]", text)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message("SetText", textFrame(text, beep, t.Icons))
}

// DisplayMove показывает ход; без значков слева ставится точка.
func (c *Clock) DisplayMove(m command.DisplayMove, beep bool) error {
	icons := m.Icons
	if icons == (command.Icons{}) {
		icons.Left = command.IconDot
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message("SetText", textFrame(m.Text(dgt.WidthPi), beep, icons))
}

// DisplayTime возвращает часы к времени, если они идут или force.
func (c *Clock) DisplayTime(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running && !force {
		log.Debug("clock isnt running - no need for endText")
		return nil
	}
	return c.message("EndText", dgt.EndText())
}

// StartClock выставляет время и запускает сторону side.
func (c *Clock) StartClock(left, right int, side command.Side) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("clock received last time from clock l:%s r:%s", dgt.FormatHMS(c.left), dgt.FormatHMS(c.right))
	log.Debug("clock sending start time to clock l:%s r:%s", dgt.FormatHMS(left), dgt.FormatHMS(right))
	frame, err := dgt.SetNRun(left, right, runByte(side))
	if err != nil {
		return err
	}
	if err := c.message("SetAndRun", frame); err != nil {
		return err
	}
	c.left, c.right = left, right
	c.running = side != command.SideNone
	return nil
}

// StopClock останавливает часы на последнем прочитанном времени.
func (c *Clock) StopClock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Debug("clock sending stop time to clock l:%s r:%s", dgt.FormatHMS(c.left), dgt.FormatHMS(c.right))
	frame, err := dgt.SetNRun(c.left, c.right, dgt.RunNone)
	if err != nil {
		return err
	}
	if err := c.message("Run", frame); err != nil {
		return err
	}
	c.running = false
	return nil
}

func runByte(side command.Side) byte {
	switch side {
	case command.SideLeft:
		return dgt.RunLeft
	case command.SideRight:
		return dgt.RunRight
	}
	return dgt.RunNone
}

// LightSquares — подсветкой полей занимается доска на ser.
func (c *Clock) LightSquares(from, to string) error { return nil }

// ClearLight — см. LightSquares.
func (c *Clock) ClearLight() error { return nil }

// IsClockRunning — часы идут.
func (c *Clock) IsClockRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Times — последнее прочитанное время сторон (секунды).
func (c *Clock) Times() (left, right int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left, c.right
}

// message отправляет сообщение часам; при ошибке — configure и ещё одна попытка. Вызывается под c.mu.
func (c *Clock) message(what string, frame []byte) error {
	err := c.send(frame)
	if err == nil {
		return nil
	}
	log.Warn("%s returned error %v", what, err)
	if cerr := c.configure(); cerr != nil {
		log.Warn("configure also failed %v", cerr)
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := c.send(frame); err != nil {
		log.Warn("finally failed %v", err)
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (c *Clock) send(frame []byte) error {
	if c.bus == nil {
		return ErrNotOpen
	}
	var status [1]byte
	if err := c.bus.Tx(append([]byte{regMessage}, frame...), status[:]); err != nil {
		return err
	}
	if status[0] != statusOK {
		return fmt.Errorf("clock status %#x", status[0])
	}
	return nil
}

func (c *Clock) configure() error {
	if c.bus == nil {
		return ErrNotOpen
	}
	var status [1]byte
	if err := c.bus.Tx([]byte{regConfigure}, status[:]); err != nil {
		return err
	}
	if status[0] != statusOK {
		return fmt.Errorf("configure status %#x", status[0])
	}
	return nil
}
