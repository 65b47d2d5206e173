package consumer

import (
	"encoding/json"
	"errors"
	"fmt"

	"smartbin-telemetry/internal/models"
)

// ErrDecode 消息不是 JSON 对象，整条丢弃
var ErrDecode = errors.New("telemetry payload decode failed")

// TelemetryPayload 解码后的强类型消息，所有字段均已按默认值补齐
type TelemetryPayload struct {
	Distance float64
	Status   models.DeviceStatus
}

// Decode 两步解码：先确认是 JSON 对象，再逐字段提取
// 字段缺失或类型不符时使用默认值，不报错：
//
//	distance   -> 0
//	lidStatus  -> "Closed"（非 Open/Closed 同样处理）
//	wasteLevel -> "green"（非 green/yellow/red 同样处理）
func Decode(payload []byte) (TelemetryPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return TelemetryPayload{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if fields == nil {
		return TelemetryPayload{}, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}

	out := TelemetryPayload{Status: models.DefaultDeviceStatus()}

	if raw, ok := fields["distance"]; ok {
		var d float64
		if json.Unmarshal(raw, &d) == nil {
			out.Distance = d
		}
	}

	if lid, ok := stringField(fields, "lidStatus"); ok && models.LidStatus(lid).Valid() {
		out.Status.LidStatus = models.LidStatus(lid)
	}

	if level, ok := stringField(fields, "wasteLevel"); ok && models.WasteLevel(level).Valid() {
		out.Status.WasteLevel = models.WasteLevel(level)
	}

	return out, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
