package dispatch

import (
	"errors"
	"math"
	"time"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
)

// dispatch раздаёт команду устройствам из её множества; незарегистрированные пропускаются.
func (d *Dispatcher) dispatch(c *command.Command) {
	log.Debug("received command %s", c)
	for _, name := range c.Devices.Names() {
		st, ok := d.reg.Get(name)
		if !ok {
			continue
		}
		d.dispatchTo(st, c.Clone())
	}
}

func (d *Dispatcher) dispatchTo(st *DeviceState, c *command.Command) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.timerRunning {
		switch {
		case !c.Kind().Waitable():
			log.Debug("(%s) command doesnt change the clock display => max timer ignored", st.name)
		case c.Wait:
			st.delayed = append(st.delayed, c)
			log.Debug("(%s) tasks delayed: %d", st.name, len(st.delayed))
			return
		default:
			log.Debug("(%s) ignore former maxtime", st.name)
			d.cancelTimer(st)
			if len(st.delayed) > 0 {
				log.Debug("(%s) delete following tasks: %d", st.name, len(st.delayed))
				st.delayed = nil
			}
		}
	}
	d.process(st, c)
}

// process — решение по одной команде для устройства. Вызывается под st.mu.
func (d *Dispatcher) process(st *DeviceState, c *command.Command) {
	kind := c.Kind()

	var hash uint64
	var hashed bool
	switch {
	case kind.ChangesRunState():
		st.hashSet = false
	case kind.Hashed():
		hash, hashed = c.ContentHash()
		if hashed && st.hashSet && st.lastHash == hash && !c.Beep {
			log.Debug("(%s) hash ignore %s", st.name, c)
			return
		}
	}

	if kind == command.KindClockVersion {
		log.Debug("(%s) clock registered", st.name)
		st.connected = true
	}
	if kind.RequiresClock() && !st.connected {
		log.Debug("(%s) clock still not registered => ignore %s", st.name, c)
		return
	}
	text, isText := c.Payload.(command.DisplayText)
	if isText && text.Notice.Transient() && d.menu.InsideUpdateMenu() {
		log.Debug("(%s) inside update menu => %s not displayed", st.name, text.Notice)
		return
	}
	if c.MaxDuration > 0 {
		d.startTimer(st, c.MaxDuration)
		if isText && text.Notice == command.NoticeBanner {
			d.menu.EnableBannerDisplayed(st.name)
		}
		log.Debug("(%s) showing %s", st.name, c)
	}
	if kind == command.KindClockStart && d.menu.InsideUpdateMenu() {
		log.Debug("(%s) inside update menu => clock not started", st.name)
		return
	}
	if hashed {
		st.lastHash, st.hashSet = hash, true
	}
	d.invoke(st, c)
}

// invoke вызывает ровно одну операцию драйвера. Ошибки и паники драйвера только логируются.
func (d *Dispatcher) invoke(st *DeviceState, c *command.Command) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("(%s) driver panic on %s: %v", st.name, c.Kind(), r)
		}
	}()

	drv := st.driver
	var err error
	switch p := c.Payload.(type) {
	case command.DisplayText:
		err = drv.DisplayText(p, c.Beep)
	case command.DisplayMove:
		err = drv.DisplayMove(p, c.Beep)
	case command.DisplayTime:
		err = drv.DisplayTime(p.Force)
	case command.LightClear:
		err = drv.ClearLight()
	case command.LightSquares:
		err = drv.LightSquares(p.From, p.To)
	case command.ClockStop:
		if drv.IsClockRunning() {
			err = drv.StopClock()
		} else {
			log.Debug("(%s) clock is already stopped", st.name)
		}
	case command.ClockStart:
		err = drv.StartClock(p.TimeLeft, p.TimeRight, p.Side)
	case command.ClockVersion:
		d.clockVersion(st, p)
	default:
		log.Warn("(%s) unknown command %T", st.name, c.Payload)
	}

	switch {
	case err == nil:
	case errors.Is(err, dgt.ErrTimeNotSet):
		log.Info("(%s) %s aborted: %v", st.name, c.Kind(), err)
	default:
		log.Warn("(%s) %s failed: %v", st.name, c.Kind(), err)
	}
}

// clockVersion: драйвер узнаёт версию, на часы уходят приветствие и возврат к времени.
func (d *Dispatcher) clockVersion(st *DeviceState, v command.ClockVersion) {
	if vl, ok := st.driver.(VersionListener); ok {
		vl.ClockVersion(v.Main, v.Sub)
	}
	if d.greeting != "" {
		text := command.Text(d.greeting)
		text.Icons.Right = command.IconDot
		text.Notice = command.NoticeBanner
		d.Submit(command.New(text, command.To(st.name), command.For(d.greetingDuration)))
	}
	d.Submit(command.New(command.DisplayTime{Force: true}, command.To(st.name), command.WithWait(true)))
}

// scaled умножает длительность на TimeFactor, насыщаясь на math.MaxInt64.
func (d *Dispatcher) scaled(dur time.Duration) time.Duration {
	f := float64(dur) * d.TimeFactor()
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

// startTimer заменяет таймер показа устройства новым. Вызывается под st.mu.
func (d *Dispatcher) startTimer(st *DeviceState, dur time.Duration) {
	d.cancelTimer(st)
	h := &timerHandle{}
	h.t = d.afterFunc(d.scaled(dur), func() { d.timerFired(st, h) })
	st.timer = h
	st.timerRunning = true
}

// cancelTimer останавливает таймер и сбрасывает ручку. Вызывается под st.mu:
// уже начавшийся обратный вызов увидит чужую ручку и ничего не сделает.
func (d *Dispatcher) cancelTimer(st *DeviceState) {
	if st.timer != nil {
		st.timer.t.Stop()
		st.timer = nil
	}
	if st.timerRunning {
		st.timerRunning = false
		d.menu.DisableBannerDisplayed(st.name)
	}
}

// timerFired — время показа вышло: разбор отложенных команд до первой, снова взведшей таймер.
func (d *Dispatcher) timerFired(st *DeviceState, h *timerHandle) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.timer != h {
		return
	}
	st.timer = nil
	st.timerRunning = false
	d.menu.DisableBannerDisplayed(st.name)

	if len(st.delayed) == 0 {
		log.Debug("(%s) max timer finished - returning to time display", st.name)
		d.Submit(command.New(command.DisplayTime{}, command.To(st.name), command.WithWait(true)))
		return
	}
	log.Debug("(%s) processing delayed tasks: %d", st.name, len(st.delayed))
	for len(st.delayed) > 0 {
		c := st.delayed[0]
		st.delayed[0] = nil
		st.delayed = st.delayed[1:]
		d.process(st, c)
		if st.timerRunning {
			if n := len(st.delayed); n > 0 {
				log.Debug("(%s) tasks stopped on %d remaining members", st.name, n)
			} else {
				log.Debug("(%s) tasks completed", st.name)
			}
			break
		}
	}
	if len(st.delayed) == 0 {
		st.delayed = nil
	}
}
