package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
)

func TestDedup_SameTextOnce(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("hello"), command.To("ser"))
	h.send(command.Text("hello"), command.To("ser"))

	assert.Equal(t, []string{"text:hello"}, ser.Calls())
}

func TestDedup_IgnoresWaitDurationAndTargets(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.DisplayMove{UCI: "e2e4"}, command.To("ser"))
	h.send(command.DisplayMove{UCI: "e2e4"}, command.To("ser", "web"), command.WithWait(true))

	assert.Equal(t, []string{"move:e2e4"}, ser.Calls())
}

func TestDedup_BeepBypass(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("hello"), command.To("ser"))
	h.send(command.Text("hello"), command.To("ser"), command.WithBeep(true))
	h.send(command.Text("hello"), command.To("ser"), command.WithBeep(true))

	assert.Equal(t, []string{"text:hello", "text:hello:beep", "text:hello:beep"}, ser.Calls())
}

func TestDedup_ResetOnClockStartStop(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("hello"), command.To("ser"))
	h.send(command.ClockStart{TimeLeft: 300, TimeRight: 300, Side: command.SideLeft}, command.To("ser"))
	h.send(command.Text("hello"), command.To("ser"))
	h.send(command.ClockStop{}, command.To("ser"))
	h.send(command.Text("hello"), command.To("ser"))

	assert.Equal(t, []string{
		"text:hello",
		"start:300:300:left",
		"text:hello",
		"stop",
		"text:hello",
	}, ser.Calls())
}

func TestDelay_WaitQueuedUntilDrain(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("first"), command.To("ser"), command.For(2*time.Second))
	require.Len(t, h.clock.active(), 1)

	h.send(command.Text("second"), command.To("ser"), command.WithWait(true))
	assert.Equal(t, []string{"text:first"}, ser.Calls())
	assert.Equal(t, 1, h.status("ser").Delayed)

	h.clock.last().fire()
	assert.Equal(t, []string{"text:first", "text:second"}, ser.Calls())
	assert.False(t, h.status("ser").TimerRunning)
	assert.Empty(t, h.queued(), "drained queue does not fall back to time display")
}

func TestDelay_NoWaitCancelsAndDiscards(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("first"), command.To("ser"), command.For(2*time.Second))
	first := h.clock.last()
	h.send(command.Text("queued"), command.To("ser"), command.WithWait(true))
	h.send(command.Text("urgent"), command.To("ser"))

	assert.Equal(t, []string{"text:first", "text:urgent"}, ser.Calls())
	assert.Empty(t, h.clock.active())
	st := h.status("ser")
	assert.False(t, st.TimerRunning)
	assert.Zero(t, st.Delayed)

	// устаревшее срабатывание отменённого таймера ничего не делает
	first.fire()
	assert.Equal(t, []string{"text:first", "text:urgent"}, ser.Calls())
	assert.Empty(t, h.queued())
}

func TestDelay_NonWaitablePassesThrough(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("first"), command.To("ser"), command.For(time.Second))
	h.send(command.Text("queued"), command.To("ser"), command.WithWait(true))
	h.send(command.LightSquares{From: "e2", To: "e4"}, command.To("ser"))
	h.send(command.LightClear{}, command.To("ser"))

	assert.Equal(t, []string{"text:first", "leds:e2e4", "clear"}, ser.Calls())
	st := h.status("ser")
	assert.True(t, st.TimerRunning)
	assert.Equal(t, 1, st.Delayed)
	assert.Len(t, h.clock.active(), 1)
}

func TestDrain_FIFOStopsOnRearm(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("show"), command.To("ser"), command.For(time.Second))
	h.send(command.Text("a"), command.To("ser"), command.WithWait(true))
	h.send(command.Text("b"), command.To("ser"), command.WithWait(true), command.For(time.Second))
	h.send(command.Text("c"), command.To("ser"), command.WithWait(true))
	h.send(command.Text("d"), command.To("ser"), command.WithWait(true))

	h.clock.last().fire()
	assert.Equal(t, []string{"text:show", "text:a", "text:b"}, ser.Calls())
	st := h.status("ser")
	assert.True(t, st.TimerRunning)
	assert.Equal(t, 2, st.Delayed, "c and d stay queued until the next fire")

	h.clock.last().fire()
	assert.Equal(t, []string{"text:show", "text:a", "text:b", "text:c", "text:d"}, ser.Calls())
	assert.Zero(t, h.status("ser").Delayed)
}

func TestDrain_EmptyQueueFallsBackToTime(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("show"), command.To("ser"), command.For(time.Second))
	h.clock.last().fire()

	q := h.queued()
	require.Len(t, q, 1)
	assert.Equal(t, command.DisplayTime{Force: false}, q[0].Payload)
	assert.True(t, q[0].Wait)
	assert.Equal(t, []string{"ser"}, q[0].Devices.Names())
}

func TestConnectionGating(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)

	h.send(command.DisplayMove{UCI: "e2e4"}, command.To("ser"))
	h.send(command.DisplayTime{Force: true}, command.To("ser"))
	h.send(command.ClockStart{TimeLeft: 60, TimeRight: 60}, command.To("ser"))
	assert.Empty(t, ser.Calls())

	// не требуют часов
	h.send(command.LightClear{}, command.To("ser"))
	assert.Equal(t, []string{"clear"}, ser.Calls())

	h.connect("ser")
	h.send(command.DisplayMove{UCI: "e2e4"}, command.To("ser"))
	assert.Equal(t, []string{"clear", "move:e2e4"}, ser.Calls())
	assert.True(t, h.status("ser").Connected)
}

func TestClockVersion_GreetingAndListener(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.d.greeting = "pico"
	h.d.greetingDuration = time.Second

	h.send(command.ClockVersion{Main: 2, Sub: 2}, command.To("ser"))
	assert.Equal(t, []string{"2.2"}, ser.versions)
	assert.Empty(t, ser.Calls())

	q := h.queued()
	require.Len(t, q, 2)
	greet, ok := q[0].Payload.(command.DisplayText)
	require.True(t, ok)
	assert.Equal(t, "pico", greet.Large)
	assert.Equal(t, command.IconDot, greet.Icons.Right)
	assert.Equal(t, command.NoticeBanner, greet.Notice)
	assert.Equal(t, time.Second, q[0].MaxDuration)
	assert.False(t, q[0].Wait)
	assert.Equal(t, command.DisplayTime{Force: true}, q[1].Payload)
	assert.True(t, q[1].Wait)

	for _, c := range q {
		h.d.Submit(c)
	}
	h.pump()
	assert.Equal(t, []string{"text:pico"}, ser.Calls())
	assert.True(t, h.menu.Banner("ser"))

	h.clock.last().fire()
	assert.False(t, h.menu.Banner("ser"))
	assert.Equal(t, []string{"text:pico", "time:force"}, ser.Calls())
}

func TestUpdateMenu_DropsBoardNoticesAndClockStart(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")
	h.menu.SetUpdate(true)

	errText := command.Text("error")
	errText.Notice = command.NoticeBoardError
	connText := command.Text("board")
	connText.Notice = command.NoticeBoardConnect

	h.send(errText, command.To("ser"), command.For(100*time.Millisecond))
	h.send(connText, command.To("ser"), command.For(time.Second))
	h.send(command.ClockStart{TimeLeft: 60, TimeRight: 60, Side: command.SideLeft}, command.To("ser"))
	h.send(command.Text("menu"), command.To("ser"))

	assert.Equal(t, []string{"text:menu"}, ser.Calls())
	assert.Empty(t, h.clock.active())

	h.menu.SetUpdate(false)
	h.send(errText, command.To("ser"), command.For(100*time.Millisecond))
	assert.Equal(t, []string{"text:menu", "text:error"}, ser.Calls())
}

func TestClockStop_OnlyWhenRunning(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.ClockStop{}, command.To("ser"))
	assert.Empty(t, ser.Calls())

	h.send(command.ClockStart{TimeLeft: 10, TimeRight: 20, Side: command.SideRight}, command.To("ser"))
	h.send(command.ClockStop{}, command.To("ser"))
	assert.Equal(t, []string{"start:10:20:right", "stop"}, ser.Calls())
}

func TestPriorityDevice(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "web", h.d.PriorityDevice())

	require.NoError(t, h.d.Register(newFakeDriver("ser")))
	require.NoError(t, h.d.Register(newFakeDriver("web")))
	assert.Equal(t, "ser", h.d.PriorityDevice())

	require.NoError(t, h.d.Register(newFakeDriver("i2c")))
	assert.Equal(t, "i2c", h.d.PriorityDevice())
	assert.Equal(t, []string{"i2c", "ser", "web"}, h.d.Devices())
}

func TestRegister(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	assert.ErrorIs(t, h.d.Register(newFakeDriver("")), ErrNoName)

	ser2 := newFakeDriver("ser")
	require.NoError(t, h.d.Register(ser2))
	assert.True(t, h.status("ser").Connected, "re-registration keeps device state")

	h.send(command.Text("hi"), command.To("ser"))
	assert.Empty(t, ser.Calls())
	assert.Equal(t, []string{"text:hi"}, ser2.Calls())
}

func TestUnknownTargetSkipped(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("hi"), command.To("i2c", "ser", "lcd"))
	assert.Equal(t, []string{"text:hi"}, ser.Calls())
}

func TestIndependence_DriverFailure(t *testing.T) {
	bad := &mockDriver{name: "ser"}
	bad.On("DisplayText", mock.Anything, false).Return(errors.New("serial write: broken pipe"))
	web := newFakeDriver("web")
	h := newHarness(t, bad, web)
	h.connect("ser", "web")

	h.send(command.Text("hello"), command.To("ser", "web"))
	h.send(command.Text("again"), command.To("ser", "web"))

	bad.AssertNumberOfCalls(t, "DisplayText", 2)
	assert.Equal(t, []string{"text:hello", "text:again"}, web.Calls())
}

func TestIndependence_FailureStillRecordsHash(t *testing.T) {
	bad := &mockDriver{name: "ser"}
	bad.On("DisplayText", mock.Anything, mock.Anything).Return(errors.New("serial write: broken pipe"))
	h := newHarness(t, bad)
	h.connect("ser")

	h.send(command.Text("hello"), command.To("ser"))
	h.send(command.Text("hello"), command.To("ser"))
	bad.AssertNumberOfCalls(t, "DisplayText", 1)

	h.send(command.Text("hello"), command.To("ser"), command.WithBeep(true))
	bad.AssertNumberOfCalls(t, "DisplayText", 2)
}

func TestIndependence_DriverPanic(t *testing.T) {
	i2c := newFakeDriver("i2c")
	i2c.panicOn = "text:boom"
	web := newFakeDriver("web")
	h := newHarness(t, i2c, web)
	h.connect("i2c", "web")

	h.send(command.Text("boom"), command.To("i2c", "web"))
	h.send(command.Text("fine"), command.To("i2c", "web"))

	assert.Equal(t, []string{"text:fine"}, i2c.Calls())
	assert.Equal(t, []string{"text:boom", "text:fine"}, web.Calls())
}

func TestTimeNotSet_IsNoOp(t *testing.T) {
	ser := &mockDriver{name: "ser"}
	ser.On("StartClock", 36000, 60, command.SideLeft).Return(fmt.Errorf("start: %w", dgt.ErrTimeNotSet))
	ser.On("DisplayTime", true).Return(nil)
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.ClockStart{TimeLeft: 36000, TimeRight: 60, Side: command.SideLeft}, command.To("ser"))
	h.send(command.DisplayTime{Force: true}, command.To("ser"))

	ser.AssertExpectations(t)
}

func TestTimeFactor(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.d.SetTimeFactor(0.5)
	h.send(command.Text("x"), command.To("ser"), command.For(2*time.Second))
	assert.Equal(t, time.Second, h.clock.last().d)

	h.d.SetTimeFactor(-3)
	assert.Equal(t, 1.0, h.d.TimeFactor())
}

func TestTimeFactor_LargeDoesNotWrap(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.d.SetTimeFactor(1e30)
	assert.Equal(t, float64(MaxTimeFactor), h.d.TimeFactor())
	h.send(command.Text("x"), command.To("ser"), command.For(command.MaxHold))
	assert.Equal(t, command.MaxHold*MaxTimeFactor, h.clock.last().d)

	h.d.SetTimeFactor(math.Inf(1))
	assert.Equal(t, float64(MaxTimeFactor), h.d.TimeFactor())

	// длительность, заданная в обход JSON, насыщается, а не уходит в минус
	h.send(command.Text("y"), command.To("ser"), command.For(time.Duration(math.MaxInt64/2)))
	assert.Equal(t, time.Duration(math.MaxInt64), h.clock.last().d)
}

func TestClonePerDevice_DelayedOnOneShownOnOther(t *testing.T) {
	ser := newFakeDriver("ser")
	web := newFakeDriver("web")
	h := newHarness(t, ser, web)
	h.connect("ser", "web")

	h.send(command.Text("busy"), command.To("ser"), command.For(time.Second))
	h.send(command.Text("x"), command.To("ser", "web"), command.WithWait(true))

	assert.Equal(t, []string{"text:busy"}, ser.Calls())
	assert.Equal(t, []string{"text:x"}, web.Calls())
	assert.Equal(t, 1, h.status("ser").Delayed)
	assert.Zero(t, h.status("web").Delayed)
	assert.False(t, h.status("web").TimerRunning)
}

func TestCancellation_NeverTwoActiveTimers(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("one"), command.To("ser"), command.For(time.Second))
	h.send(command.Text("two"), command.To("ser"), command.For(2*time.Second))
	assert.Len(t, h.clock.active(), 1)

	// неожидающая команда с длительностью, не меняющая дисплей, тоже заменяет таймер
	h.send(command.LightSquares{From: "a1", To: "a2"}, command.To("ser"), command.For(time.Second))
	assert.Len(t, h.clock.active(), 1)
}

func TestCancellation_Randomized(t *testing.T) {
	ser := newFakeDriver("ser")
	web := newFakeDriver("web")
	h := newHarness(t, ser, web)
	h.connect("ser", "web")

	rnd := rand.New(rand.NewSource(42))
	payloads := []command.Payload{
		command.Text("a"), command.Text("b"), command.DisplayMove{UCI: "e2e4"},
		command.DisplayTime{}, command.LightClear{}, command.LightSquares{From: "e2", To: "e4"},
		command.ClockStart{TimeLeft: 60, TimeRight: 60, Side: command.SideLeft}, command.ClockStop{},
	}
	for i := 0; i < 500; i++ {
		switch rnd.Intn(3) {
		case 0:
			// срабатывает случайный таймер, в том числе давно отменённый
			h.clock.mu.Lock()
			var tm *fakeTimer
			if n := len(h.clock.timers); n > 0 {
				tm = h.clock.timers[rnd.Intn(n)]
			}
			h.clock.mu.Unlock()
			if tm != nil {
				tm.fire()
			}
		default:
			var opts []command.Option
			opts = append(opts, command.To([]string{"ser", "web"}[rnd.Intn(2)]))
			if rnd.Intn(2) == 0 {
				opts = append(opts, command.WithWait(true))
			}
			if rnd.Intn(2) == 0 {
				opts = append(opts, command.For(time.Duration(1+rnd.Intn(3))*time.Second))
			}
			h.send(payloads[rnd.Intn(len(payloads))], opts...)
		}
		h.pump()

		running := 0
		for _, s := range h.d.Snapshot() {
			if s.TimerRunning {
				running++
			}
		}
		require.LessOrEqual(t, len(h.clock.active()), running, "step %d: active timers without a running device", i)

		owner := map[Timer]string{}
		h.d.reg.Each(func(st *DeviceState) {
			st.mu.Lock()
			defer st.mu.Unlock()
			if st.timer != nil {
				owner[st.timer.t] = st.name
			}
		})
		perDevice := map[string]int{}
		for _, tm := range h.clock.active() {
			name, ok := owner[tm]
			require.True(t, ok, "step %d: active timer owned by no device", i)
			perDevice[name]++
		}
		for name, n := range perDevice {
			require.LessOrEqual(t, n, 1, "step %d: %s has %d active timers", i, name, n)
		}
	}
}

func TestShutdown_CancelsTimersAndDelayed(t *testing.T) {
	ser := newFakeDriver("ser")
	h := newHarness(t, ser)
	h.connect("ser")

	h.send(command.Text("x"), command.To("ser"), command.For(time.Second))
	h.send(command.Text("y"), command.To("ser"), command.WithWait(true))

	h.d.shutdown()
	assert.Empty(t, h.clock.active())
	st := h.status("ser")
	assert.False(t, st.TimerRunning)
	assert.Zero(t, st.Delayed)
}

func TestRun_EndToEnd(t *testing.T) {
	ser := newFakeDriver("ser")
	web := newFakeDriver("web")
	d := New(newFakeMenu(), Options{Greeting: "pico", GreetingDuration: 20 * time.Millisecond})
	require.NoError(t, d.Register(ser))
	require.NoError(t, d.Register(web))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	d.Submit(command.New(command.ClockVersion{Main: 2, Sub: 2}, command.To("ser", "web")))
	d.Submit(command.New(command.Text("hello"), command.To("ser"), command.WithWait(true)))

	require.Eventually(t, func() bool {
		calls := ser.Calls()
		return len(calls) == 3
	}, 2*time.Second, 5*time.Millisecond)
	// hello обгоняет приветствие: оно встаёт в очередь позже, при обработке версии
	assert.Equal(t, []string{"text:hello", "text:pico", "time:force"}, ser.Calls())

	require.Eventually(t, func() bool {
		return len(web.Calls()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"text:pico", "time:force"}, web.Calls())

	d.Stop()
	for _, s := range d.Snapshot() {
		assert.False(t, s.TimerRunning)
	}
}
