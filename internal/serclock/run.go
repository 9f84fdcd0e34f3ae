package serclock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
)

// Run открывает порт, просит у часов версию и читает сообщения доски до отмены ctx.
// Потеря порта или сбой инициализации — переподключение с экспоненциальной задержкой;
// сбой доски не завершает Run.
func (c *Clock) Run(ctx context.Context) error {
	for {
		port, err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("board connect: %v", err)
			continue
		}
		err = c.readLoop(ctx, port)
		c.disconnect(port)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("board connection lost: %v", err)
	}
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // до отмены ctx
	return b
}

// connect открывает порт и шлёт начальные команды доске. Ошибка открытия или начальной записи —
// повтор с задержкой; возвращается только при отмене ctx.
func (c *Clock) connect(ctx context.Context) (io.ReadWriteCloser, error) {
	var port io.ReadWriteCloser
	op := func() error {
		device, err := ResolvePort(c.opts.Port, c.list)
		if err != nil {
			return err
		}
		p, err := c.open(device, c.opts.Baud)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.port = p
		err = c.write([]byte{dgt.CmdSendUpdateNice})
		if err == nil {
			err = c.write(dgt.VersionRequest())
		}
		c.mu.Unlock()
		if err != nil {
			c.disconnect(p)
			return fmt.Errorf("board init on %s: %w", device, err)
		}
		log.Info("board connected on %s", device)
		port = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn("board connect: %v, retry in %s", err, next.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return port, nil
}

func (c *Clock) disconnect(port io.ReadWriteCloser) {
	c.mu.Lock()
	if c.port == port {
		c.port = nil
	}
	c.mu.Unlock()
	_ = port.Close()
}

func (c *Clock) readLoop(ctx context.Context, port io.Reader) error {
	r := ctxReader{ctx: ctx, r: port}
	for {
		m, err := dgt.ReadMessage(r)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handleMessage(m)
	}
}

// handleMessage разбирает сообщения часов; остальные сообщения доски пропускаются.
func (c *Clock) handleMessage(m dgt.Message) {
	if m.ID != dgt.MsgBWTime {
		log.Debug("board message %#x ignored (%d bytes)", m.ID, len(m.Data))
		return
	}
	t, err := dgt.DecodeBWTime(m.Data)
	if err != nil {
		log.Warn("%v", err)
		return
	}
	if main, sub, ok := t.Version(); ok {
		log.Debug("clock version ack %d.%d", main, sub)
		if c.submit != nil {
			c.submit(command.New(command.ClockVersion{Main: main, Sub: sub}, command.To(command.DeviceSer)))
		}
		return
	}
	if b, ok := t.Button(); ok {
		log.Info("clock button %#x pressed", b)
		return
	}
	if t.IsAck {
		log.Debug("clock ack %#x", t.Ack.Cmd)
		return
	}
	c.mu.Lock()
	c.left, c.right = t.Left, t.Right
	c.mu.Unlock()
	log.Debug("clock new time received l:%s r:%s", dgt.FormatHMS(t.Left), dgt.FormatHMS(t.Right))
}
