package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — конфигурация dgtclock: диспетчер, устройства (ser, i2c, web), логирование.
type Config struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Devices    DevicesConfig    `yaml:"devices"`
	Log        LogConfig        `yaml:"log"`
	LockFile   string           `yaml:"lock_file"` // пусто — без блокировки экземпляра
}

// DispatcherConfig — параметры планировщика отображения.
type DispatcherConfig struct {
	TimeFactor       float64 `yaml:"time_factor"` // множитель всех длительностей показа
	Greeting         string  `yaml:"greeting"`    // текст при подключении часов; пусто — не показывать
	GreetingDuration string  `yaml:"greeting_duration"`
}

// DevicesConfig — включённые устройства.
type DevicesConfig struct {
	Serial SerialConfig `yaml:"serial"`
	I2C    I2CConfig    `yaml:"i2c"`
	Web    WebConfig    `yaml:"web"`
}

// SerialConfig — часы DGT XL/3000 через последовательный порт доски.
type SerialConfig struct {
	Enable         bool    `yaml:"enable"`
	Port           string  `yaml:"port"` // "auto" — первый найденный ttyACM/ttyUSB/rfcomm
	Baud           int     `yaml:"baud"`
	WriteRate      float64 `yaml:"write_rate"` // кадров в секунду
	RevelationLEDs bool    `yaml:"revelation_leds"`
	DisableEnd     bool    `yaml:"disable_end"`
}

// I2CConfig — часы DGT 3000 на шине I2C (DGT Pi).
type I2CConfig struct {
	Enable       bool   `yaml:"enable"`
	Bus          string `yaml:"bus"`
	Addr         uint16 `yaml:"addr"`
	PollInterval string `yaml:"poll_interval"`
}

// WebConfig — виртуальные часы: HTTP + websocket + mDNS.
type WebConfig struct {
	Enable      bool    `yaml:"enable"`
	Listen      string  `yaml:"listen"`
	MDNS        bool    `yaml:"mdns"`
	Name        string  `yaml:"name"`
	CommandRate float64 `yaml:"command_rate"` // команд в секунду через POST /api/commands
}

// LogConfig — уровень и формат логов.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default возвращает конфиг по умолчанию
func Default() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			TimeFactor:       1,
			Greeting:         "pico",
			GreetingDuration: "1s",
		},
		Devices: DevicesConfig{
			Serial: SerialConfig{
				Enable:    true,
				Port:      "auto",
				Baud:      9600,
				WriteRate: 20,
			},
			I2C: I2CConfig{
				Bus:          "/dev/i2c-1",
				Addr:         0x28,
				PollInterval: "100ms",
			},
			Web: WebConfig{
				Enable:      true,
				Listen:      ":7070",
				MDNS:        true,
				CommandRate: 50,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		LockFile: "/tmp/dgtclock.lock",
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет значения, которые нельзя исправить дефолтами.
func (c *Config) Validate() error {
	if c.Dispatcher.TimeFactor < 0 {
		return fmt.Errorf("dispatcher.time_factor: must be >= 0, got %v", c.Dispatcher.TimeFactor)
	}
	if _, err := time.ParseDuration(c.Dispatcher.GreetingDuration); err != nil {
		return fmt.Errorf("dispatcher.greeting_duration: %w", err)
	}
	if c.Devices.I2C.Enable {
		if _, err := time.ParseDuration(c.Devices.I2C.PollInterval); err != nil {
			return fmt.Errorf("devices.i2c.poll_interval: %w", err)
		}
		if c.Devices.I2C.Addr == 0 || c.Devices.I2C.Addr > 0x7f {
			return fmt.Errorf("devices.i2c.addr: invalid 7-bit address %#x", c.Devices.I2C.Addr)
		}
	}
	if !c.Devices.Serial.Enable && !c.Devices.I2C.Enable && !c.Devices.Web.Enable {
		return fmt.Errorf("devices: no device enabled")
	}
	return nil
}

// GreetingDuration возвращает длительность приветствия.
func (c *Config) GreetingDuration() time.Duration {
	return ParseDuration(c.Dispatcher.GreetingDuration, time.Second)
}

// PollInterval возвращает период опроса часов I2C.
func (c *Config) PollInterval() time.Duration {
	return ParseDuration(c.Devices.I2C.PollInterval, 100*time.Millisecond)
}

// ParseDuration парсит длительность; пустая строка или ошибка — defaultVal.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Dispatcher.TimeFactor == 0 {
		c.Dispatcher.TimeFactor = d.Dispatcher.TimeFactor
	}
	if c.Dispatcher.GreetingDuration == "" {
		c.Dispatcher.GreetingDuration = d.Dispatcher.GreetingDuration
	}
	if c.Devices.Serial.Port == "" {
		c.Devices.Serial.Port = d.Devices.Serial.Port
	}
	if c.Devices.Serial.Baud == 0 {
		c.Devices.Serial.Baud = d.Devices.Serial.Baud
	}
	if c.Devices.Serial.WriteRate <= 0 {
		c.Devices.Serial.WriteRate = d.Devices.Serial.WriteRate
	}
	if c.Devices.I2C.Bus == "" {
		c.Devices.I2C.Bus = d.Devices.I2C.Bus
	}
	if c.Devices.I2C.Addr == 0 {
		c.Devices.I2C.Addr = d.Devices.I2C.Addr
	}
	if c.Devices.I2C.PollInterval == "" {
		c.Devices.I2C.PollInterval = d.Devices.I2C.PollInterval
	}
	if c.Devices.Web.Listen == "" {
		c.Devices.Web.Listen = d.Devices.Web.Listen
	}
	if c.Devices.Web.CommandRate <= 0 {
		c.Devices.Web.CommandRate = d.Devices.Web.CommandRate
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
