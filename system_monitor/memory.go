package systemmonitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

type memStat struct {
	total     int
	used      int
	available int
}

func parseMemStat(buf []byte) *memStat {
	var total, free, buffers, cached, available int
	for _, line := range strings.Split(string(buf), "\n") {
		parts := strings.Fields(line)
		if len(parts) != 3 {
			continue
		}
		value, _ := strconv.Atoi(parts[1])
		bytes := value * 1024
		switch strings.TrimSuffix(parts[0], ":") {
		case "MemTotal":
			total = bytes
		case "MemFree":
			free = bytes
		case "MemAvailable":
			available = bytes
		case "Buffers":
			buffers = bytes
		case "Cached", "SReclaimable":
			cached += bytes
		}
	}
	if total == 0 {
		return nil
	}
	return &memStat{
		total:     total,
		used:      total - free - buffers - cached,
		available: available,
	}
}

func (mon *systemMonitor) appendMemoryMetrics(now time.Time, buf []byte) {
	stat := parseMemStat(buf)
	if stat == nil {
		return
	}
	t := now.Unix()
	mon.sm.MemUsedBytes = append(mon.sm.MemUsedBytes, report.Measurement[int]{Time: t, Value: stat.used})
	mon.sm.MemUsedPct = append(mon.sm.MemUsedPct, report.Measurement[float64]{
		Time:  t,
		Value: 100 * float64(stat.used) / float64(stat.total),
	})
	mon.sm.MemAvailBytes = append(mon.sm.MemAvailBytes, report.Measurement[int]{Time: t, Value: stat.available})
	mon.sm.MemAvailPct = append(mon.sm.MemAvailPct, report.Measurement[float64]{
		Time:  t,
		Value: 100 * float64(stat.available) / float64(stat.total),
	})
}
