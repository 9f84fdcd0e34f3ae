package command

import (
	"encoding/json"
	"sort"
	"strings"
)

// Имена устройств.
const (
	DeviceI2C = "i2c"
	DeviceSer = "ser"
	DeviceWeb = "web"
)

// AllDevices — цели по умолчанию.
var AllDevices = []string{DeviceI2C, DeviceSer, DeviceWeb}

// DeviceSet — множество имён устройств, которым адресована команда.
type DeviceSet map[string]struct{}

// Devs собирает множество из имён.
func Devs(names ...string) DeviceSet {
	s := make(DeviceSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// ParseDevs разбирает список через запятую: "ser,web".
func ParseDevs(s string) DeviceSet {
	return Devs(strings.Split(s, ",")...)
}

// Has — имя входит в множество.
func (s DeviceSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names — имена в порядке сортировки.
func (s DeviceSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone — независимая копия.
func (s DeviceSet) Clone() DeviceSet {
	out := make(DeviceSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

func (s DeviceSet) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON — отсортированный массив имён.
func (s DeviceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON принимает массив имён.
func (s *DeviceSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*s = Devs(names...)
	return nil
}
