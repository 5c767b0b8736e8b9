package device

import (
	"fmt"
	"strconv"
	"sync"
)

// Thermometer 温度计，读数通常来自 SDCPU 遥测
type Thermometer struct {
	name        string
	mu          sync.RWMutex
	temperature float64
}

func NewThermometer(name string) *Thermometer {
	return &Thermometer{name: name}
}

func (t *Thermometer) Name() string { return t.name }

func (t *Thermometer) Temperature() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.temperature
}

func (t *Thermometer) SetTemperature(v float64) {
	t.mu.Lock()
	t.temperature = v
	t.mu.Unlock()
}

// SetReading 解析遥测中的文本读数
func (t *Thermometer) SetReading(value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return &ValueError{Name: "TEMPERATURE", Value: value, Err: err}
	}
	t.SetTemperature(v)
	return nil
}

func (t *Thermometer) Info() string {
	return fmt.Sprintf("Thermometer: %s Value: %s", t.name, strconv.FormatFloat(t.Temperature(), 'f', -1, 64))
}
