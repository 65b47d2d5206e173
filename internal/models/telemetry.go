package models

import "time"

// TimestampLayout 读数时间戳格式（本地时间 时:分:秒）
const TimestampLayout = "15:04:05"

// LidStatus 桶盖状态
type LidStatus string

const (
	LidOpen   LidStatus = "Open"
	LidClosed LidStatus = "Closed"
)

// Valid reports whether s is one of the known lid states.
func (s LidStatus) Valid() bool {
	return s == LidOpen || s == LidClosed
}

// WasteLevel 垃圾满溢等级
type WasteLevel string

const (
	WasteGreen  WasteLevel = "green"
	WasteYellow WasteLevel = "yellow"
	WasteRed    WasteLevel = "red"
)

func (l WasteLevel) Valid() bool {
	switch l {
	case WasteGreen, WasteYellow, WasteRed:
		return true
	}
	return false
}

// Reading 一条解码后的距离读数，按值传递，构造后不再修改
type Reading struct {
	Timestamp string  `json:"timestamp"`
	Distance  float64 `json:"distance"` // cm
}

// NewReading stamps distance with the local wall-clock time of at.
func NewReading(distance float64, at time.Time) Reading {
	return Reading{
		Timestamp: at.Local().Format(TimestampLayout),
		Distance:  distance,
	}
}

// DeviceStatus 设备状态，每条消息整体替换
type DeviceStatus struct {
	LidStatus  LidStatus  `json:"lidStatus"`
	WasteLevel WasteLevel `json:"wasteLevel"`
}

// DefaultDeviceStatus 尚未收到任何消息时的状态
func DefaultDeviceStatus() DeviceStatus {
	return DeviceStatus{LidStatus: LidClosed, WasteLevel: WasteGreen}
}

// Snapshot 某一时刻共享状态的拷贝，Readings 按时间先后排列
type Snapshot struct {
	Sequence   uint64     `json:"sequence"` // 已应用的消息数
	Readings   []Reading  `json:"readings"`
	LidStatus  LidStatus  `json:"lidStatus"`
	WasteLevel WasteLevel `json:"wasteLevel"`
}

// Latest returns the newest reading, if any.
func (s Snapshot) Latest() (Reading, bool) {
	if len(s.Readings) == 0 {
		return Reading{}, false
	}
	return s.Readings[len(s.Readings)-1], true
}
