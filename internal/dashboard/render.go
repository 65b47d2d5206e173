package dashboard

import (
	"fmt"
	"strings"

	"smartbin-telemetry/internal/models"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiClear  = "\x1b[H\x1b[2J"
)

// RenderOptions 渲染参数
type RenderOptions struct {
	Color     bool // ANSI 颜色
	Clear     bool // 每帧清屏
	BarWidth  int
	ShowTitle bool
}

// Render 把快照渲染为文本面板：标题、桶盖状态、满溢等级、距离曲线
func Render(snap models.Snapshot, opts RenderOptions) string {
	width := opts.BarWidth
	if width <= 0 {
		width = 40
	}

	var b strings.Builder
	if opts.Clear {
		b.WriteString(ansiClear)
	}
	if opts.ShowTitle {
		b.WriteString("Smart Garbage Monitoring System\n\n")
	}

	fmt.Fprintf(&b, "Lid Status: %s\n", strings.ToUpper(string(snap.LidStatus)))

	level := fmt.Sprintf("Waste Level: %s", strings.ToUpper(string(snap.WasteLevel)))
	if opts.Color {
		level = wasteColor(snap.WasteLevel) + level + ansiReset
	}
	b.WriteString(level + "\n\n")

	b.WriteString("Distance (cm) over time\n")
	if len(snap.Readings) == 0 {
		b.WriteString("  (no readings yet)\n")
		return b.String()
	}

	maxDistance := 0.0
	for _, r := range snap.Readings {
		if r.Distance > maxDistance {
			maxDistance = r.Distance
		}
	}
	for _, r := range snap.Readings {
		fmt.Fprintf(&b, "  %s %7.1f %s\n", r.Timestamp, r.Distance, bar(r.Distance, maxDistance, width))
	}
	return b.String()
}

// wasteColor 与原面板一致：green/yellow 以外一律按 red 显示
func wasteColor(level models.WasteLevel) string {
	switch level {
	case models.WasteGreen:
		return ansiGreen
	case models.WasteYellow:
		return ansiYellow
	default:
		return ansiRed
	}
}

func bar(v, maxValue float64, width int) string {
	if maxValue <= 0 || v <= 0 {
		return ""
	}
	n := int(v / maxValue * float64(width))
	if n == 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}
