package house

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// 名称最小长度
const (
	MinHouseNameLen  = 8
	MinRoomNameLen   = 8
	MinDeviceNameLen = 8
)

var (
	ErrInvalidHouseName  = errors.New("house: invalid house name")
	ErrInvalidRoomName   = errors.New("house: invalid room name")
	ErrInvalidDeviceName = errors.New("house: invalid device identity")
	ErrInvalidDevice     = errors.New("house: device kind does not match payload")
	ErrDuplicate         = errors.New("house: name already exists")
)

// RoomNotFoundError 房间不存在
type RoomNotFoundError struct{ Room string }

func (e *RoomNotFoundError) Error() string { return fmt.Sprintf("house: room %q not found", e.Room) }

// DeviceNotFoundError 房间中不存在该设备
type DeviceNotFoundError struct{ Room, Device string }

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("house: device %q not found in room %q", e.Device, e.Room)
}

// Room 房间内按名称索引设备
type Room struct {
	name    string
	mu      sync.RWMutex
	devices map[string]Device
}

func NewRoom(name string) (*Room, error) {
	if len(name) < MinRoomNameLen {
		return nil, ErrInvalidRoomName
	}
	return &Room{name: name, devices: make(map[string]Device)}, nil
}

func (r *Room) Name() string { return r.name }

// Add 添加设备，同名设备不允许覆盖
func (r *Room) Add(d Device) error {
	if !d.valid() {
		return ErrInvalidDevice
	}
	name := d.Name()
	if len(name) < MinDeviceNameLen {
		return ErrInvalidDeviceName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[name]; ok {
		return ErrDuplicate
	}
	r.devices[name] = d
	return nil
}

// Remove 删除并返回设备
func (r *Room) Remove(name string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[name]
	if ok {
		delete(r.devices, name)
	}
	return d, ok
}

func (r *Room) Get(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

// List 按名称排序的设备名
func (r *Room) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Info 每行一个设备状态，按名称排序
func (r *Room) Info() string {
	var b strings.Builder
	for _, name := range r.List() {
		if d, ok := r.Get(name); ok {
			b.WriteString(d.Info())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// House 房屋
type House struct {
	name  string
	mu    sync.RWMutex
	rooms map[string]*Room
}

func New(name string) (*House, error) {
	if len(name) < MinHouseNameLen {
		return nil, ErrInvalidHouseName
	}
	return &House{name: name, rooms: make(map[string]*Room)}, nil
}

func (h *House) Name() string { return h.name }

func (h *House) AddRoom(r *Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[r.Name()]; ok {
		return ErrDuplicate
	}
	h.rooms[r.Name()] = r
	return nil
}

func (h *House) RemoveRoom(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	if ok {
		delete(h.rooms, name)
	}
	return r, ok
}

func (h *House) Room(name string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[name]
	return r, ok
}

// Rooms 按名称排序的房间名
func (h *House) Rooms() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Info 房屋报告
func (h *House) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "House '%s'\n", h.name)
	for _, name := range h.Rooms() {
		r, ok := h.Room(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Room: %s\n", name)
		b.WriteString(r.Info())
	}
	return b.String()
}

// DeviceStatus 查询指定房间中设备的状态
func (h *House) DeviceStatus(room, dev string) (string, error) {
	r, ok := h.Room(room)
	if !ok {
		return "", &RoomNotFoundError{Room: room}
	}
	d, ok := r.Get(dev)
	if !ok {
		return "", &DeviceNotFoundError{Room: room, Device: dev}
	}
	return fmt.Sprintf("Room %s Device status %s", room, d.Info()), nil
}
