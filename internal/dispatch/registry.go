package dispatch

import (
	"errors"
	"sort"
	"sync"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
)

// ErrNoName — драйвер без имени нельзя зарегистрировать.
var ErrNoName = errors.New("driver has no name")

// timerHandle — активный таймер показа. Сравнение по указателю служит токеном отмены:
// сработавший таймер, который уже не st.timer, ничего не делает.
type timerHandle struct {
	t Timer
}

// DeviceState — всё состояние одного устройства. Поля ниже mu меняются только под mu.
type DeviceState struct {
	name string

	mu           sync.Mutex
	driver       Driver
	timer        *timerHandle
	timerRunning bool
	connected    bool
	delayed      []*command.Command
	lastHash     uint64
	hashSet      bool
}

// Name — имя устройства.
func (st *DeviceState) Name() string { return st.name }

// DeviceStatus — снимок состояния устройства для /api/status и CLI.
type DeviceStatus struct {
	Name         string `json:"name"`
	Connected    bool   `json:"connected"`
	TimerRunning bool   `json:"timer_running"`
	Delayed      int    `json:"delayed"`
	ClockRunning bool   `json:"clock_running"`
}

// Status снимает состояние под блокировкой устройства.
func (st *DeviceState) Status() DeviceStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	return DeviceStatus{
		Name:         st.name,
		Connected:    st.connected,
		TimerRunning: st.timerRunning,
		Delayed:      len(st.delayed),
		ClockRunning: st.driver.IsClockRunning(),
	}
}

// Registry — устройства по имени. Записи не удаляются.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*DeviceState)}
}

// Register добавляет устройство. Повторная регистрация того же имени сохраняет состояние
// и меняет только драйвер (под блокировкой устройства).
func (r *Registry) Register(drv Driver) (*DeviceState, error) {
	name := drv.Name()
	if name == "" {
		return nil, ErrNoName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.devices[name]; ok {
		st.mu.Lock()
		st.driver = drv
		st.mu.Unlock()
		return st, nil
	}
	st := &DeviceState{name: name, driver: drv}
	r.devices[name] = st
	return st, nil
}

// Get возвращает состояние устройства.
func (r *Registry) Get(name string) (*DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.devices[name]
	return st, ok
}

// Names — зарегистрированные имена по алфавиту.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for n := range r.devices {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Each вызывает fn для каждого устройства в порядке имён.
func (r *Registry) Each(fn func(*DeviceState)) {
	for _, n := range r.Names() {
		if st, ok := r.Get(n); ok {
			fn(st)
		}
	}
}

// PriorityDevice — главное устройство: i2c, затем ser; иначе web.
func (r *Registry) PriorityDevice() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range []string{command.DeviceI2C, command.DeviceSer} {
		if _, ok := r.devices[n]; ok {
			return n
		}
	}
	return command.DeviceWeb
}
