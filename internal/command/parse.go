package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Usage — грамматика Parse для справки CLI.
const Usage = `[devs=ser,web] [for=2s] [beep] [wait] [notice=board_error] <verb> ...
  text <words>
  move <uci> [left|right]
  time [force]
  start <left> <right> [left|right|none]
  stop
  version <main> <sub>
  leds <from> <to>
  clear`

// Parse собирает команду из слов командной строки или консоли.
// Опции идут перед глаголом; всё после глагола — его аргументы.
func Parse(args []string) (*Command, error) {
	var opts []Option
	var notice Notice
	i := 0
	for ; i < len(args); i++ {
		opt, ok, err := parseOption(args[i], &notice)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if opt != nil {
			opts = append(opts, opt)
		}
	}
	if i == len(args) {
		return nil, fmt.Errorf("missing verb")
	}
	verb, rest := strings.ToLower(args[i]), args[i+1:]

	p, err := parseVerb(verb, rest)
	if err != nil {
		return nil, err
	}
	if t, ok := p.(DisplayText); ok {
		t.Notice = notice
		p = t
	} else if notice != NoticeNone {
		return nil, fmt.Errorf("notice= applies to text only")
	}
	return New(p, opts...), nil
}

func parseOption(arg string, notice *Notice) (Option, bool, error) {
	switch arg {
	case "beep":
		return WithBeep(true), true, nil
	case "wait":
		return WithWait(true), true, nil
	}
	key, val, ok := strings.Cut(arg, "=")
	if !ok {
		return nil, false, nil
	}
	switch key {
	case "devs":
		devs := ParseDevs(val)
		if len(devs) == 0 {
			return nil, false, fmt.Errorf("devs: empty device list")
		}
		return ToSet(devs), true, nil
	case "for":
		d, err := parseSeconds(val)
		if err != nil {
			return nil, false, fmt.Errorf("for: %w", err)
		}
		return For(d), true, nil
	case "notice":
		n, err := ParseNotice(val)
		if err != nil {
			return nil, false, err
		}
		*notice = n
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("unknown option %q", key)
}

func parseVerb(verb string, args []string) (Payload, error) {
	switch verb {
	case "text":
		if len(args) == 0 {
			return nil, fmt.Errorf("text: missing words")
		}
		return Text(strings.Join(args, " ")), nil
	case "move":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("move: want <uci> [left|right]")
		}
		uci := strings.ToLower(args[0])
		if !ValidUCI(uci) {
			return nil, fmt.Errorf("move: invalid uci %q", args[0])
		}
		m := DisplayMove{UCI: uci}
		if len(args) == 2 {
			side, err := ParseSide(args[1])
			if err != nil {
				return nil, fmt.Errorf("move: %w", err)
			}
			m.Side = side
		}
		return m, nil
	case "time":
		switch {
		case len(args) == 0:
			return DisplayTime{}, nil
		case len(args) == 1 && args[0] == "force":
			return DisplayTime{Force: true}, nil
		}
		return nil, fmt.Errorf("time: want [force]")
	case "start":
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("start: want <left> <right> [left|right|none]")
		}
		l, err := parseClockTime(args[0])
		if err != nil {
			return nil, fmt.Errorf("start: left: %w", err)
		}
		r, err := parseClockTime(args[1])
		if err != nil {
			return nil, fmt.Errorf("start: right: %w", err)
		}
		s := ClockStart{TimeLeft: l, TimeRight: r}
		if len(args) == 3 {
			if s.Side, err = ParseSide(args[2]); err != nil {
				return nil, fmt.Errorf("start: %w", err)
			}
		}
		return s, nil
	case "stop":
		return ClockStop{}, nil
	case "version":
		if len(args) != 2 {
			return nil, fmt.Errorf("version: want <main> <sub>")
		}
		main, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("version: main: %w", err)
		}
		sub, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("version: sub: %w", err)
		}
		return ClockVersion{Main: main, Sub: sub}, nil
	case "leds":
		if len(args) != 2 || !ValidSquare(args[0]) || !ValidSquare(args[1]) {
			return nil, fmt.Errorf("leds: want <from> <to> squares")
		}
		return LightSquares{From: args[0], To: args[1]}, nil
	case "clear":
		return LightClear{}, nil
	}
	return nil, fmt.Errorf("unknown verb %q", verb)
}

// parseClockTime принимает секунды ("300") или длительность ("5m", "1h30m").
func parseClockTime(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative time %d", n)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative time %q", s)
	}
	return int(d / time.Second), nil
}

// parseSeconds принимает длительность ("2s") или секунды дробью ("2.1").
func parseSeconds(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return holdSeconds(f)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return holdSeconds(d.Seconds())
}
