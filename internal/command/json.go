package command

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// wireCommand — JSON-форма команды (HTTP API, websocket, CLI).
// maxtime — секунды с дробной частью.
type wireCommand struct {
	ID      uuid.UUID       `json:"id"`
	Kind    Kind            `json:"kind"`
	Devices DeviceSet       `json:"devices,omitempty"`
	Beep    bool            `json:"beep,omitempty"`
	Wait    bool            `json:"wait,omitempty"`
	MaxTime float64         `json:"maxtime,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON кодирует команду в JSON-форму.
func (c *Command) MarshalJSON() ([]byte, error) {
	if c.Payload == nil {
		return nil, fmt.Errorf("command %s: no payload", c.ID)
	}
	p, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(wireCommand{
		ID:      c.ID,
		Kind:    c.Kind(),
		Devices: c.Devices,
		Beep:    c.Beep,
		Wait:    c.Wait,
		MaxTime: c.MaxDuration.Seconds(),
		Payload: p,
	})
}

// UnmarshalJSON разбирает JSON-форму. Без devices — всем устройствам, без id — новый id.
func (c *Command) UnmarshalJSON(b []byte) error {
	var w wireCommand
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p, err := decodePayload(w.Kind, w.Payload)
	if err != nil {
		return err
	}
	hold, err := holdSeconds(w.MaxTime)
	if err != nil {
		return fmt.Errorf("maxtime: %w", err)
	}
	*c = Command{
		ID:          w.ID,
		Devices:     w.Devices,
		Beep:        w.Beep,
		Wait:        w.Wait,
		MaxDuration: hold,
		Payload:     p,
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Devices == nil {
		c.Devices = Devs(AllDevices...)
	}
	c.normalize()
	return nil
}

func decodePayload(k Kind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch k {
	case KindDisplayText:
		var v DisplayText
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindDisplayMove:
		var v DisplayMove
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		if !ValidUCI(v.UCI) {
			return nil, fmt.Errorf("display_move: invalid uci %q", v.UCI)
		}
		p = v
	case KindDisplayTime:
		var v DisplayTime
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindClockStart:
		var v ClockStart
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		if v.TimeLeft < 0 || v.TimeRight < 0 {
			return nil, fmt.Errorf("clock_start: negative time")
		}
		p = v
	case KindClockStop:
		p = ClockStop{}
	case KindClockVersion:
		var v ClockVersion
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindLightSquares:
		var v LightSquares
		if err := unmarshalPayload(raw, &v); err != nil {
			return nil, err
		}
		if !ValidSquare(v.From) || !ValidSquare(v.To) {
			return nil, fmt.Errorf("light_squares: invalid squares %q %q", v.From, v.To)
		}
		p = v
	case KindLightClear:
		p = LightClear{}
	default:
		return nil, fmt.Errorf("unknown command kind %d", uint8(k))
	}
	return p, nil
}

func unmarshalPayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
