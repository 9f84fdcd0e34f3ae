package serclock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// readTimeout — чтение порта не блокируется дольше, чтобы цикл замечал отмену ctx.
const readTimeout = 500 * time.Millisecond

// OpenFunc открывает порт часов.
type OpenFunc func(device string, baud int) (io.ReadWriteCloser, error)

// OpenPort открывает последовательный порт доски.
func OpenPort(device string, baud int) (io.ReadWriteCloser, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return p, nil
}

// Префиксы портов, на которых встречаются доски DGT (USB, Bluetooth).
var boardPrefixes = []string{"/dev/ttyACM", "/dev/ttyUSB", "/dev/rfcomm", "COM"}

// ListPorts — доступные последовательные порты, сначала похожие на доску.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	sort.SliceStable(ports, func(i, j int) bool {
		return isBoardPort(ports[i]) && !isBoardPort(ports[j])
	})
	return ports, nil
}

func isBoardPort(name string) bool {
	for _, p := range boardPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// ErrNoPort — port: auto, но подходящего порта нет.
var ErrNoPort = errors.New("no board serial port found")

// ResolvePort возвращает device как есть или, для "auto"/"", первый порт, похожий на доску.
func ResolvePort(device string, list func() ([]string, error)) (string, error) {
	if device != "" && device != "auto" {
		return device, nil
	}
	ports, err := list()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if isBoardPort(p) {
			return p, nil
		}
	}
	return "", ErrNoPort
}

// ctxReader прерывает ожидание данных при отмене ctx. Пустое чтение (таймаут порта) повторяется.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	for {
		if err := c.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := c.r.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
}
