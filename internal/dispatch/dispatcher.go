package dispatch

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
)

var log = logger.Named("dispatch")

// Options — параметры диспетчера.
type Options struct {
	// TimeFactor умножает все длительности показа; 0 — 1.
	TimeFactor float64
	// Greeting показывается на часах после ClockVersion; пусто — без приветствия.
	Greeting         string
	GreetingDuration time.Duration
	// AfterFunc — фабрика таймеров; nil — time.AfterFunc.
	AfterFunc AfterFunc
}

// Dispatcher — единственный читатель очереди команд.
type Dispatcher struct {
	queue     *Queue
	reg       *Registry
	menu      Menu
	afterFunc AfterFunc

	greeting         string
	greetingDuration time.Duration
	timeFactor       atomic.Uint64 // math.Float64bits

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New создаёт диспетчер. menu == nil — меню без режима обновления.
func New(menu Menu, opts Options) *Dispatcher {
	if menu == nil {
		menu = nopMenu{}
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	d := &Dispatcher{
		queue:            NewQueue(),
		reg:              NewRegistry(),
		menu:             menu,
		afterFunc:        opts.AfterFunc,
		greeting:         opts.Greeting,
		greetingDuration: opts.GreetingDuration,
	}
	d.SetTimeFactor(opts.TimeFactor)
	return d
}

// Register регистрирует драйвер устройства.
func (d *Dispatcher) Register(drv Driver) error {
	if _, err := d.reg.Register(drv); err != nil {
		return err
	}
	log.Debug("device %s registered", drv.Name())
	return nil
}

// Submit ставит команду в очередь; не блокируется.
func (d *Dispatcher) Submit(c *command.Command) {
	if c == nil || c.Payload == nil {
		return
	}
	d.queue.Push(c)
}

// PriorityDevice — см. Registry.PriorityDevice.
func (d *Dispatcher) PriorityDevice() string {
	return d.reg.PriorityDevice()
}

// Devices — зарегистрированные имена.
func (d *Dispatcher) Devices() []string {
	return d.reg.Names()
}

// Snapshot — состояние всех устройств.
func (d *Dispatcher) Snapshot() []DeviceStatus {
	var out []DeviceStatus
	d.reg.Each(func(st *DeviceState) {
		out = append(out, st.Status())
	})
	return out
}

// Pending — команд в очереди.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// MaxTimeFactor — верхняя граница множителя длительностей.
const MaxTimeFactor = 1000

// SetTimeFactor меняет множитель длительностей на лету (<= 0 — 1, больше MaxTimeFactor — MaxTimeFactor).
func (d *Dispatcher) SetTimeFactor(f float64) {
	if f <= 0 || math.IsNaN(f) {
		f = 1
	}
	if f > MaxTimeFactor {
		f = MaxTimeFactor
	}
	d.timeFactor.Store(math.Float64bits(f))
}

// TimeFactor — текущий множитель длительностей.
func (d *Dispatcher) TimeFactor() float64 {
	return math.Float64frombits(d.timeFactor.Load())
}

// Run читает очередь до отмены ctx. При выходе гасит таймеры и отложенные команды всех устройств.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info("dispatch queue ready")
	defer d.shutdown()
	for {
		c, err := d.queue.Pop(ctx)
		if err != nil {
			return nil
		}
		d.dispatch(c)
	}
}

// Start запускает Run в отдельной горутине.
func (d *Dispatcher) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel, d.done = cancel, done
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
}

// Stop останавливает запущенный Start и ждёт завершения.
func (d *Dispatcher) Stop() {
	d.runMu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Dispatcher) shutdown() {
	d.reg.Each(func(st *DeviceState) {
		st.mu.Lock()
		defer st.mu.Unlock()
		d.cancelTimer(st)
		st.delayed = nil
	})
	log.Info("dispatch stopped")
}
