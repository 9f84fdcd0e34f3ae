package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
)

// fakeClock — таймеры, которые срабатывают только по fire.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// fire вызывает обратный вызов, даже если таймер остановлен: так проверяется устаревшее срабатывание.
func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	t.fired = true
	f := t.f
	t.clock.mu.Unlock()
	f()
}

// active — таймеры, которые не остановлены и не сработали.
func (c *fakeClock) active() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

// fakeDriver записывает вызовы строками: "text:hello", "move:e2e4", "time:force" ...
type fakeDriver struct {
	name string

	mu       sync.Mutex
	calls    []string
	running  bool
	versions []string
	panicOn  string
}

func newFakeDriver(name string) *fakeDriver {
	return &fakeDriver{name: name}
}

func (f *fakeDriver) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != "" && f.panicOn == call {
		panic("driver exploded")
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDriver) Name() string { return f.name }

func (f *fakeDriver) DisplayText(t command.DisplayText, beep bool) error {
	if beep {
		return f.record("text:" + t.Variant(command.SizeLarge) + ":beep")
	}
	return f.record("text:" + t.Variant(command.SizeLarge))
}

func (f *fakeDriver) DisplayMove(m command.DisplayMove, beep bool) error {
	return f.record("move:" + m.UCI)
}

func (f *fakeDriver) DisplayTime(force bool) error {
	if force {
		return f.record("time:force")
	}
	return f.record("time")
}

func (f *fakeDriver) StartClock(left, right int, side command.Side) error {
	f.mu.Lock()
	f.running = side != command.SideNone
	f.mu.Unlock()
	return f.record(fmt.Sprintf("start:%d:%d:%s", left, right, side))
}

func (f *fakeDriver) StopClock() error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return f.record("stop")
}

func (f *fakeDriver) LightSquares(from, to string) error {
	return f.record("leds:" + from + to)
}

func (f *fakeDriver) ClearLight() error { return f.record("clear") }

func (f *fakeDriver) IsClockRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeDriver) ClockVersion(main, sub int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, fmt.Sprintf("%d.%d", main, sub))
}

// mockDriver — драйвер на testify/mock для сценариев с ошибками.
type mockDriver struct {
	mock.Mock
	name string
}

func (m *mockDriver) Name() string { return m.name }

func (m *mockDriver) DisplayText(t command.DisplayText, beep bool) error {
	return m.Called(t, beep).Error(0)
}

func (m *mockDriver) DisplayMove(mv command.DisplayMove, beep bool) error {
	return m.Called(mv, beep).Error(0)
}

func (m *mockDriver) DisplayTime(force bool) error { return m.Called(force).Error(0) }

func (m *mockDriver) StartClock(left, right int, side command.Side) error {
	return m.Called(left, right, side).Error(0)
}

func (m *mockDriver) StopClock() error { return m.Called().Error(0) }

func (m *mockDriver) LightSquares(from, to string) error { return m.Called(from, to).Error(0) }

func (m *mockDriver) ClearLight() error { return m.Called().Error(0) }

func (m *mockDriver) IsClockRunning() bool { return m.Called().Bool(0) }

// fakeMenu — меню с переключаемым режимом обновления.
type fakeMenu struct {
	mu     sync.Mutex
	update bool
	banner map[string]bool
}

func newFakeMenu() *fakeMenu {
	return &fakeMenu{banner: make(map[string]bool)}
}

func (m *fakeMenu) InsideUpdateMenu() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update
}

func (m *fakeMenu) EnableBannerDisplayed(dev string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banner[dev] = true
}

func (m *fakeMenu) DisableBannerDisplayed(dev string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banner[dev] = false
}

func (m *fakeMenu) Banner(dev string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banner[dev]
}

func (m *fakeMenu) SetUpdate(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.update = v
}

type harness struct {
	t     *testing.T
	d     *Dispatcher
	clock *fakeClock
	menu  *fakeMenu
}

// newHarness — диспетчер без приветствия с ручными таймерами; устройства регистрируются сразу.
func newHarness(t *testing.T, drivers ...Driver) *harness {
	t.Helper()
	h := &harness{t: t, clock: &fakeClock{}, menu: newFakeMenu()}
	h.d = New(h.menu, Options{AfterFunc: h.clock.AfterFunc})
	for _, drv := range drivers {
		if err := h.d.Register(drv); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

// send проводит команду через раздачу синхронно.
func (h *harness) send(p command.Payload, opts ...command.Option) *command.Command {
	c := command.New(p, opts...)
	h.d.dispatch(c)
	return c
}

// connect представляет часы и выбрасывает приветственные команды из очереди.
func (h *harness) connect(names ...string) {
	h.send(command.ClockVersion{Main: 2, Sub: 2}, command.To(names...))
	h.discardQueued()
}

// pump проводит через раздачу всё, что диспетчер сам поставил в очередь.
func (h *harness) pump() {
	for {
		c, ok := h.d.queue.TryPop()
		if !ok {
			return
		}
		h.d.dispatch(c)
	}
}

func (h *harness) queued() []*command.Command {
	var out []*command.Command
	for {
		c, ok := h.d.queue.TryPop()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func (h *harness) discardQueued() { _ = h.queued() }

func (h *harness) status(name string) DeviceStatus {
	st, ok := h.d.reg.Get(name)
	if !ok {
		h.t.Fatalf("device %s not registered", name)
	}
	return st.Status()
}
