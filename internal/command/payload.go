package command

import (
	"fmt"
	"strings"
)

// Payload — содержимое команды. Набор реализаций закрыт: только типы этого пакета.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Side — сторона часов (чей ход идёт / куда выравнивать ход).
type Side int8

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "none"
}

// ParseSide разбирает "left", "right", "none" ("" — none).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return SideNone, nil
	case "left", "l":
		return SideLeft, nil
	case "right", "r":
		return SideRight, nil
	}
	return SideNone, fmt.Errorf("unknown side %q", s)
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Icon — значок дисплея часов (битовая маска протокола DGT).
type Icon uint8

const (
	IconNone  Icon = 0x00
	IconColon Icon = 0x08
	IconDot   Icon = 0x10
)

// Icons — значки левой и правой половины дисплея.
type Icons struct {
	Left  Icon `json:"left,omitempty" cbor:"l"`
	Right Icon `json:"right,omitempty" cbor:"r"`
}

// Notice помечает служебный текст. Заменяет «магические» длительности показа.
type Notice uint8

const (
	NoticeNone Notice = iota
	// NoticeBanner — приветствие программы; пока показано, меню считает баннер отображённым.
	NoticeBanner
	// NoticeBoardError — ошибка доски; не показывается в режиме обновления.
	NoticeBoardError
	// NoticeBoardConnect — доска подключена; не показывается в режиме обновления.
	NoticeBoardConnect
)

var noticeNames = map[Notice]string{
	NoticeNone:         "none",
	NoticeBanner:       "banner",
	NoticeBoardError:   "board_error",
	NoticeBoardConnect: "board_connect",
}

func (n Notice) String() string {
	if s, ok := noticeNames[n]; ok {
		return s
	}
	return fmt.Sprintf("notice(%d)", uint8(n))
}

// ParseNotice разбирает имя пометки ("" — none).
func ParseNotice(s string) (Notice, error) {
	if s == "" {
		return NoticeNone, nil
	}
	for n, name := range noticeNames {
		if name == s {
			return n, nil
		}
	}
	return NoticeNone, fmt.Errorf("unknown notice %q", s)
}

func (n Notice) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Notice) UnmarshalText(b []byte) error {
	v, err := ParseNotice(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// Transient — уведомление доски, которое не должно перебивать режим обновления.
func (n Notice) Transient() bool {
	return n == NoticeBoardError || n == NoticeBoardConnect
}

// Size — ширина текстового варианта.
type Size uint8

const (
	SizeLarge  Size = iota // DGT Pi, 11 символов
	SizeMedium             // DGT 3000, 8 символов
	SizeSmall              // DGT XL, 6 символов
)

// Width — число символов дисплея для варианта.
func (s Size) Width() int {
	switch s {
	case SizeMedium:
		return 8
	case SizeSmall:
		return 6
	}
	return 11
}

// DisplayText — текст на дисплее часов в трёх вариантах ширины.
type DisplayText struct {
	Large  string `json:"large,omitempty" cbor:"l"`
	Medium string `json:"medium,omitempty" cbor:"m"`
	Small  string `json:"small,omitempty" cbor:"s"`
	Icons  Icons  `json:"icons" cbor:"i"`
	Notice Notice `json:"notice,omitempty" cbor:"n"`
}

// Text строит все три варианта из одной строки обрезкой по ширине.
func Text(s string) DisplayText {
	return DisplayText{
		Large:  truncate(s, SizeLarge.Width()),
		Medium: truncate(s, SizeMedium.Width()),
		Small:  truncate(s, SizeSmall.Width()),
	}
}

// Variant возвращает текст нужной ширины; если он пуст — ближайший соседний.
// Small → Medium → Large, Medium → Large → Small, Large → Medium → Small.
func (t DisplayText) Variant(size Size) string {
	var order []string
	switch size {
	case SizeSmall:
		order = []string{t.Small, t.Medium, t.Large}
	case SizeMedium:
		order = []string{t.Medium, t.Large, t.Small}
	default:
		order = []string{t.Large, t.Medium, t.Small}
	}
	for _, s := range order {
		if s != "" {
			return s
		}
	}
	return ""
}

func (DisplayText) Kind() Kind { return KindDisplayText }
func (DisplayText) isPayload() {}

// DisplayMove — ход на дисплее. SAN готовит источник команды; пусто — показывается UCI.
type DisplayMove struct {
	UCI   string `json:"uci" cbor:"u"`
	FEN   string `json:"fen,omitempty" cbor:"f"`
	SAN   string `json:"san,omitempty" cbor:"a"`
	Side  Side   `json:"side,omitempty" cbor:"d"`
	Icons Icons  `json:"icons" cbor:"i"`
}

// Text возвращает строку хода для дисплея шириной width с выравниванием по стороне.
func (m DisplayMove) Text(width int) string {
	s := m.SAN
	if s == "" {
		s = m.UCI
	}
	s = truncate(s, width)
	if m.Side == SideRight {
		return fmt.Sprintf("%*s", width, s)
	}
	return s
}

func (DisplayMove) Kind() Kind { return KindDisplayMove }
func (DisplayMove) isPayload() {}

// DisplayTime — вернуть часы к показу времени. Force — даже если часы стоят.
type DisplayTime struct {
	Force bool `json:"force,omitempty"`
}

func (DisplayTime) Kind() Kind { return KindDisplayTime }
func (DisplayTime) isPayload() {}

// ClockStart — выставить время (секунды) и запустить сторону Side.
type ClockStart struct {
	TimeLeft  int  `json:"time_left"`
	TimeRight int  `json:"time_right"`
	Side      Side `json:"side,omitempty"`
}

func (ClockStart) Kind() Kind { return KindClockStart }
func (ClockStart) isPayload() {}

// ClockStop — остановить часы.
type ClockStop struct{}

func (ClockStop) Kind() Kind { return KindClockStop }
func (ClockStop) isPayload() {}

// ClockVersion — часы представились: версия прошивки и вариант.
type ClockVersion struct {
	Main    int    `json:"main"`
	Sub     int    `json:"sub"`
	Variant string `json:"variant,omitempty"`
}

func (ClockVersion) Kind() Kind { return KindClockVersion }
func (ClockVersion) isPayload() {}

func (v ClockVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Main, v.Sub)
}

// LightSquares — подсветить два поля доски (Revelation II).
type LightSquares struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (LightSquares) Kind() Kind { return KindLightSquares }
func (LightSquares) isPayload() {}

// LightClear — погасить подсветку полей.
type LightClear struct{}

func (LightClear) Kind() Kind { return KindLightClear }
func (LightClear) isPayload() {}

// ValidSquare проверяет имя поля: "a1".."h8".
func ValidSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// ValidUCI проверяет ход в UCI: "e2e4", "e7e8q".
func ValidUCI(s string) bool {
	switch len(s) {
	case 4:
	case 5:
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return false
		}
	default:
		return false
	}
	return ValidSquare(s[:2]) && ValidSquare(s[2:4])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
