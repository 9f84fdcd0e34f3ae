package dgt

import (
	"fmt"
	"io"
)

// Сообщения доски (старший бит в первом байте снят)
const (
	MsgBWTime     = 0x0d // время часов или подтверждение команды часам
	MsgVersion    = 0x13
	MsgFieldUpdt  = 0x0e
	MsgBWTimeSize = 10
	msgFlag       = 0x80
	headerSize    = 3
)

// Message — входящее сообщение доски без заголовка.
type Message struct {
	ID   byte
	Data []byte
}

// ReadMessage читает одно сообщение: id|0x80, размер (2 байта по 7 бит), данные.
// Байты до первого id с выставленным старшим битом пропускаются.
func ReadMessage(r io.Reader) (Message, error) {
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Message{}, err
		}
		if b[0]&msgFlag != 0 {
			break
		}
	}
	id := b[0] &^ msgFlag
	var size [2]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return Message{}, err
	}
	n := int(size[0]&0x7f)<<7 | int(size[1]&0x7f)
	if n < headerSize {
		return Message{}, fmt.Errorf("dgt message %#x: bad size %d", id, n)
	}
	data := make([]byte, n-headerSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return Message{}, err
	}
	return Message{ID: id, Data: data}, nil
}

// EncodeMessage — обратная операция к ReadMessage (эмуляция доски в тестах и webclock).
func EncodeMessage(id byte, data []byte) []byte {
	n := len(data) + headerSize
	buf := []byte{id | msgFlag, byte(n>>7) & 0x7f, byte(n) & 0x7f}
	return append(buf, data...)
}

// Ack — подтверждение команды часам.
type Ack struct {
	Cmd  byte // ack1: команда, на которую ответ
	Arg1 byte // ack2
	Arg2 byte // ack3
}

// BWTime — разобранное MsgBWTime: либо подтверждение, либо время сторон.
type BWTime struct {
	IsAck  bool
	Ack    Ack
	Left   int // секунды
	Right  int
	Status byte
}

// Version — для подтверждения ClkVersion возвращает версию часов.
func (t BWTime) Version() (main, sub int, ok bool) {
	if !t.IsAck || t.Ack.Cmd != ClkVersion {
		return 0, 0, false
	}
	return int(t.Ack.Arg1 >> 4), int(t.Ack.Arg1 & 0x0f), true
}

// Button — для подтверждения нажатия возвращает маску кнопки.
func (t BWTime) Button() (byte, bool) {
	if !t.IsAck || t.Ack.Cmd != 0x88 {
		return 0, false
	}
	return t.Ack.Arg2, true
}

// DecodeBWTime разбирает данные MsgBWTime (7 байт).
func DecodeBWTime(m []byte) (BWTime, error) {
	if len(m) < 6 {
		return BWTime{}, fmt.Errorf("bwtime: short message %d bytes", len(m))
	}
	if m[0]&0x0f == 0x0a || m[3]&0x0f == 0x0a {
		return BWTime{
			IsAck: true,
			Ack: Ack{
				Cmd:  m[2]&0x7f | (m[3]<<2)&0x80,
				Arg1: m[4]&0x7f | (m[0]<<3)&0x80,
				Arg2: m[5]&0x7f | (m[0]<<2)&0x80,
			},
		}, nil
	}
	t := BWTime{
		Right: int(m[0]&0x0f)*3600 + bcd(m[1])*60 + bcd(m[2]),
		Left:  int(m[3]&0x0f)*3600 + bcd(m[4])*60 + bcd(m[5]),
	}
	if len(m) > 6 {
		t.Status = m[6]
	}
	return t, nil
}

func bcd(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}
