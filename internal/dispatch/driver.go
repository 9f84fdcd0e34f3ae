// Package dispatch — планировщик команд часов: единая очередь, раздача по устройствам,
// подавление повторов, отложенный показ и таймеры длительности показа.
//
// Каждое устройство обрабатывается под своим мьютексом; глобальной блокировки нет,
// порядок между устройствами не гарантируется.
package dispatch

import (
	"time"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
)

// Driver — возможности часов, которыми пользуется диспетчер.
// Вызовы синхронные и короткие; повторы при сбоях — забота драйвера.
type Driver interface {
	Name() string
	DisplayText(text command.DisplayText, beep bool) error
	DisplayMove(move command.DisplayMove, beep bool) error
	DisplayTime(force bool) error
	StartClock(left, right int, side command.Side) error
	StopClock() error
	LightSquares(from, to string) error
	ClearLight() error
	IsClockRunning() bool
}

// VersionListener — драйвер хочет знать версию представившихся часов (режим DGT 3000 и т.п.).
type VersionListener interface {
	ClockVersion(main, sub int)
}

// Menu — внешнее меню: режим обновления и флаг «баннер на экране».
type Menu interface {
	InsideUpdateMenu() bool
	EnableBannerDisplayed(dev string)
	DisableBannerDisplayed(dev string)
}

type nopMenu struct{}

func (nopMenu) InsideUpdateMenu() bool        { return false }
func (nopMenu) EnableBannerDisplayed(string)  {}
func (nopMenu) DisableBannerDisplayed(string) {}

// Timer — отменяемый отложенный вызов.
type Timer interface {
	Stop() bool
}

// AfterFunc запускает f через d. По умолчанию time.AfterFunc; в тестах подменяется.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
