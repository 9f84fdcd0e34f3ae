// Package dgt — кадры протокола досок и часов DGT (XL, 3000, Revelation II) и разбор входящих сообщений.
package dgt

import (
	"errors"
	"fmt"
)

// Команды доске
const (
	CmdSendReset      = 0x40
	CmdSendUpdateNice = 0x4b // доска шлёт изменения и время часов
	CmdClockMessage   = 0x2b // обёртка сообщения часам
	CmdSetLEDs        = 0x60 // Revelation II
)

// Команды часам внутри CmdClockMessage
const (
	ClkDisplay = 0x01 // DGT XL: 6 знаков + значки
	ClkIcons   = 0x02
	ClkEnd     = 0x03 // вернуть часы к показу времени
	ClkButton  = 0x08
	ClkVersion = 0x09
	ClkSetNRun = 0x0a
	ClkBeep    = 0x0b
	ClkASCII   = 0x0c // DGT 3000: 8 символов ASCII

	ClkStartMessage = 0x03
	ClkEndMessage   = 0x00
)

// Сторона хода для SetNRun
const (
	RunLeft  = 0x01
	RunRight = 0x02
	RunNone  = 0x04
)

// Ширины дисплеев
const (
	WidthXL   = 6
	Width3000 = 8
	WidthPi   = 11
)

// TimeNotSet — 10 часов: часы не могут показать такое время, значение означает «время ещё не получено».
const TimeNotSet = 10 * 3600

// ErrTimeNotSet — время часов ещё не известно, пуск/остановка невозможны.
var ErrTimeNotSet = errors.New("clock time not set")

// CheckTimes возвращает ErrTimeNotSet, если хотя бы одно время вне диапазона часов.
func CheckTimes(left, right int) error {
	if left < 0 || right < 0 || left >= TimeNotSet || right >= TimeNotSet {
		return fmt.Errorf("left %d right %d: %w", left, right, ErrTimeNotSet)
	}
	return nil
}

// HMS раскладывает секунды на часы, минуты, секунды.
func HMS(secs int) (h, m, s int) {
	if secs < 0 {
		secs = 0
	}
	return secs / 3600, secs / 60 % 60, secs % 60
}

// FormatHMS — "h:mm:ss".
func FormatHMS(secs int) string {
	h, m, s := HMS(secs)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// SquareIndex — номер поля для LED Revelation II: (8-ряд)*8 + вертикаль.
func SquareIndex(sq string) (byte, error) {
	if len(sq) != 2 || sq[0] < 'a' || sq[0] > 'h' || sq[1] < '1' || sq[1] > '8' {
		return 0, fmt.Errorf("invalid square %q", sq)
	}
	file := int(sq[0] - 'a')
	rank := int(sq[1] - '0')
	return byte((8-rank)*8 + file), nil
}
