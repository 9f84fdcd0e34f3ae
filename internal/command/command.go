package command

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Command — единица работы для диспетчера. После Submit не изменяется.
type Command struct {
	ID      uuid.UUID
	Devices DeviceSet
	Beep    bool
	// Wait — при работающем таймере показа встать в очередь, а не перебить текущий показ.
	// Имеет смысл только для видов с Waitable(); у остальных всегда false.
	Wait bool
	// MaxDuration — сколько держать содержимое на дисплее; 0 — без таймера.
	MaxDuration time.Duration
	Payload     Payload
}

// MaxHold — наибольшая длительность показа, которую принимают JSON и командная строка.
const MaxHold = 24 * time.Hour

// holdSeconds переводит секунды в длительность показа с проверкой диапазона.
func holdSeconds(sec float64) (time.Duration, error) {
	if math.IsNaN(sec) || sec < 0 {
		return 0, fmt.Errorf("must be >= 0, got %v", sec)
	}
	if sec > MaxHold.Seconds() {
		return 0, fmt.Errorf("must be <= %v seconds, got %v", MaxHold.Seconds(), sec)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// Option настраивает команду в New.
type Option func(*Command)

// To задаёт целевые устройства.
func To(names ...string) Option {
	return func(c *Command) { c.Devices = Devs(names...) }
}

// ToSet задаёт целевые устройства множеством.
func ToSet(s DeviceSet) Option {
	return func(c *Command) { c.Devices = s.Clone() }
}

// WithBeep — звуковой сигнал вместе с показом.
func WithBeep(beep bool) Option {
	return func(c *Command) { c.Beep = beep }
}

// WithWait — не перебивать текущий показ.
func WithWait(wait bool) Option {
	return func(c *Command) { c.Wait = wait }
}

// For — держать содержимое d.
func For(d time.Duration) Option {
	return func(c *Command) { c.MaxDuration = d }
}

// New создаёт команду; по умолчанию адресована всем устройствам.
func New(p Payload, opts ...Option) *Command {
	c := &Command{
		ID:      uuid.New(),
		Devices: Devs(AllDevices...),
		Payload: p,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.normalize()
	return c
}

func (c *Command) normalize() {
	if c.Devices == nil {
		c.Devices = DeviceSet{}
	}
	if !c.Kind().Waitable() {
		c.Wait = false
	}
	if c.MaxDuration < 0 {
		c.MaxDuration = 0
	}
}

// Kind — вид команды по её содержимому.
func (c *Command) Kind() Kind {
	if c == nil || c.Payload == nil {
		return 0
	}
	return c.Payload.Kind()
}

// Clone — независимая копия (своё множество устройств).
func (c *Command) Clone() *Command {
	cp := *c
	cp.Devices = c.Devices.Clone()
	return &cp
}

// Only — копия, адресованная одному устройству.
func (c *Command) Only(name string) *Command {
	cp := *c
	cp.Devices = Devs(name)
	return &cp
}

var hashMode cbor.EncMode

func init() {
	var err error
	hashMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor hash mode: %v", err))
	}
}

type hashInput struct {
	Kind    Kind    `cbor:"k"`
	Payload Payload `cbor:"p"`
}

// ContentHash — отпечаток содержимого для подавления повторов: вид, текст/ход и значки.
// Beep, Wait, длительность и устройства не учитываются. Определён только для DisplayText и DisplayMove.
func (c *Command) ContentHash() (uint64, bool) {
	if !c.Kind().Hashed() {
		return 0, false
	}
	b, err := hashMode.Marshal(hashInput{Kind: c.Kind(), Payload: c.Payload})
	if err != nil {
		return 0, false
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64(), true
}

func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(c.Kind().String())
	switch p := c.Payload.(type) {
	case DisplayText:
		fmt.Fprintf(&b, " %q", p.Variant(SizeLarge))
		if p.Notice != NoticeNone {
			fmt.Fprintf(&b, " notice=%s", p.Notice)
		}
	case DisplayMove:
		fmt.Fprintf(&b, " %s", p.UCI)
	case DisplayTime:
		if p.Force {
			b.WriteString(" force")
		}
	case ClockStart:
		fmt.Fprintf(&b, " l=%d r=%d side=%s", p.TimeLeft, p.TimeRight, p.Side)
	case ClockVersion:
		fmt.Fprintf(&b, " %s", p)
	case LightSquares:
		fmt.Fprintf(&b, " %s%s", p.From, p.To)
	}
	fmt.Fprintf(&b, " devs=%s", c.Devices)
	if c.Beep {
		b.WriteString(" beep")
	}
	if c.Wait {
		b.WriteString(" wait")
	}
	if c.MaxDuration > 0 {
		fmt.Fprintf(&b, " for=%s", c.MaxDuration)
	}
	return b.String()
}
