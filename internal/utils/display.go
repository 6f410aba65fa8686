package utils

import (
	"fmt"
	"time"
)

const (
	kb = 1000
	mb = 1000 * 1000
	gb = 1000 * 1000 * 1000
)

// DisplayBPS formats a byte count over a duration as bits per second
func DisplayBPS(bytes uint64, duration time.Duration) string {
	if duration <= 0 {
		return "0 bps"
	}
	bps := float64(bytes) / duration.Seconds() * 8

	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.2f Gbps", bps/gb)
	case bps >= 1e6:
		return fmt.Sprintf("%.2f Mbps", bps/mb)
	case bps >= 1e3:
		return fmt.Sprintf("%.2f Kbps", bps/kb)
	default:
		return fmt.Sprintf("%.2f bps", bps)
	}
}

// DisplayPPS formats a packet count over a duration as packets per second
func DisplayPPS(packets uint64, duration time.Duration) string {
	if duration <= 0 {
		return "0 pps"
	}
	return fmt.Sprintf("%.1f pps", float64(packets)/duration.Seconds())
}

func DisplayB(bytes uint64) string {
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// DisplayTime rounds to milliseconds
func DisplayTime(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
