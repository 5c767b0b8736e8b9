package house

import (
	"fmt"

	"github.com/taoyao-code/iot-sdcp/internal/device"
)

// Kind 设备种类（封闭集合）
type Kind int

const (
	KindSocket Kind = iota + 1
	KindThermometer
)

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindThermometer:
		return "thermometer"
	default:
		return "unknown"
	}
}

// Device 设备的和类型：Kind 决定 Socket 与 Thermometer 中哪一个有效
type Device struct {
	Kind        Kind
	Socket      *device.Socket
	Thermometer *device.Thermometer
	// Addr 设备的 SDCP/SDCPU 网络地址，仅作记录
	Addr string
}

func NewSocketDevice(s *device.Socket, addr string) Device {
	return Device{Kind: KindSocket, Socket: s, Addr: addr}
}

func NewThermometerDevice(t *device.Thermometer, addr string) Device {
	return Device{Kind: KindThermometer, Thermometer: t, Addr: addr}
}

// Name 设备标识
func (d Device) Name() string {
	switch d.Kind {
	case KindSocket:
		return d.Socket.Name()
	case KindThermometer:
		return d.Thermometer.Name()
	}
	return ""
}

// Info 设备状态描述
func (d Device) Info() string {
	switch d.Kind {
	case KindSocket:
		return d.Socket.Info()
	case KindThermometer:
		return d.Thermometer.Info()
	}
	return fmt.Sprintf("Unknown device kind %d", d.Kind)
}

func (d Device) valid() bool {
	switch d.Kind {
	case KindSocket:
		return d.Socket != nil && d.Thermometer == nil
	case KindThermometer:
		return d.Thermometer != nil && d.Socket == nil
	}
	return false
}
