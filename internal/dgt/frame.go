package dgt

import "fmt"

// EncodeClock собирает сообщение часам: 0x2b, длина, 0x03, cmd, payload, 0x00.
// Длина считает байты после себя: start + cmd + payload + end.
func EncodeClock(cmd byte, payload ...byte) []byte {
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, CmdClockMessage, byte(len(payload)+3), ClkStartMessage, cmd)
	buf = append(buf, payload...)
	return append(buf, ClkEndMessage)
}

func beepByte(beep bool) byte {
	if beep {
		return 0x03
	}
	return 0x00
}

// ASCIIText — текст на DGT 3000 (8 символов, дополняется пробелами).
func ASCIIText(text string, beep bool) []byte {
	b := pad(text, Width3000)
	return EncodeClock(ClkASCII, append(b, beepByte(beep))...)
}

// Значки DGT XL: младшие биты — левая половина, старшие — правая.
const (
	xlLeftDot    = 0x01
	xlLeftColon  = 0x02
	xlRightDot   = 0x04
	xlRightColon = 0x08
)

// XLIcons кодирует значки сторон в байт кадра XL. Значения left/right — маски command.Icon.
func XLIcons(left, right byte) byte {
	var b byte
	if left&0x10 != 0 {
		b |= xlLeftDot
	}
	if left&0x08 != 0 {
		b |= xlLeftColon
	}
	if right&0x10 != 0 {
		b |= xlRightDot
	}
	if right&0x08 != 0 {
		b |= xlRightColon
	}
	return b
}

// XLText — текст на DGT XL: 6 знаков в порядке 2,1,0,5,4,3 (как адресует дисплей), значки, beep.
func XLText(text string, beep bool, icons byte) []byte {
	c := pad(text, WidthXL)
	payload := []byte{c[2], c[1], c[0], c[5], c[4], c[3], icons, beepByte(beep)}
	return EncodeClock(ClkDisplay, payload...)
}

// EndText возвращает часы к показу времени.
func EndText() []byte {
	return EncodeClock(ClkEnd)
}

// VersionRequest просит часы прислать версию.
func VersionRequest() []byte {
	return EncodeClock(ClkVersion)
}

// Beep — короткий сигнал; dur в единицах 64 мс.
func Beep(dur byte) []byte {
	return EncodeClock(ClkBeep, dur)
}

// SetNRun выставляет время сторон и запускает side (RunLeft, RunRight, RunNone).
func SetNRun(left, right int, side byte) ([]byte, error) {
	if err := CheckTimes(left, right); err != nil {
		return nil, err
	}
	lh, lm, ls := HMS(left)
	rh, rm, rs := HMS(right)
	return EncodeClock(ClkSetNRun, byte(lh), byte(lm), byte(ls), byte(rh), byte(rm), byte(rs), side), nil
}

// SetLEDs подсвечивает два поля доски Revelation II.
func SetLEDs(from, to string) ([]byte, error) {
	fr, err := SquareIndex(from)
	if err != nil {
		return nil, fmt.Errorf("leds from: %w", err)
	}
	t, err := SquareIndex(to)
	if err != nil {
		return nil, fmt.Errorf("leds to: %w", err)
	}
	return []byte{CmdSetLEDs, 0x04, 0x01, fr, t, ClkEndMessage}, nil
}

// ClearLEDs гасит все поля.
func ClearLEDs() []byte {
	return []byte{CmdSetLEDs, 0x04, 0x00, 0x40, 0x40, ClkEndMessage}
}

func pad(text string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	n := 0
	for _, r := range text {
		if n == width {
			break
		}
		if r > 0x7e || r < 0x20 {
			r = '?'
		}
		b[n] = byte(r)
		n++
	}
	return b
}
