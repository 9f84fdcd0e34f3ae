// Package command — команды для часов DGT: вид, полезная нагрузка и общие атрибуты (устройства, beep, wait, длительность показа).
package command

import "fmt"

// Kind — вид команды.
type Kind uint8

const (
	KindDisplayText Kind = iota + 1
	KindDisplayMove
	KindDisplayTime
	KindClockStart
	KindClockStop
	KindClockVersion
	KindLightSquares
	KindLightClear
)

var kindNames = map[Kind]string{
	KindDisplayText:  "display_text",
	KindDisplayMove:  "display_move",
	KindDisplayTime:  "display_time",
	KindClockStart:   "clock_start",
	KindClockStop:    "clock_stop",
	KindClockVersion: "clock_version",
	KindLightSquares: "light_squares",
	KindLightClear:   "light_clear",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind разбирает имя вида ("display_text", "clock_start", ...).
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command kind %q", s)
}

// MarshalText для JSON.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown command kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText для JSON.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Waitable — у вида есть атрибут wait; остальные проходят мимо работающего таймера показа.
func (k Kind) Waitable() bool {
	switch k {
	case KindDisplayText, KindDisplayMove, KindDisplayTime, KindClockStart, KindClockStop:
		return true
	}
	return false
}

// RequiresClock — команда имеет смысл только после того, как часы представились (ClockVersion).
func (k Kind) RequiresClock() bool {
	return k.Waitable()
}

// Hashed — содержимое участвует в подавлении повторов.
func (k Kind) Hashed() bool {
	return k == KindDisplayText || k == KindDisplayMove
}

// ChangesRunState — команда меняет ход часов, после неё содержимое дисплея неизвестно.
func (k Kind) ChangesRunState() bool {
	return k == KindClockStart || k == KindClockStop
}
