package systemmonitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

// Cumulative jiffies from the aggregate line of /proc/stat.
type cpuTimeStat struct {
	user    int
	nice    int
	system  int
	idle    int
	iowait  int
	irq     int
	softIrq int
	steal   int
	guest   int
}

func (ts *cpuTimeStat) totalCPUTime() int {
	return ts.user + ts.system + ts.nice + ts.iowait + ts.irq + ts.softIrq + ts.steal + ts.idle
}

func parseCPUTimeStat(buf []byte) *cpuTimeStat {
	for _, line := range strings.Split(string(buf), "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 10 {
			return nil
		}
		fields := make([]int, 9)
		for i := range fields {
			fields[i], _ = strconv.Atoi(parts[i+1])
		}
		return &cpuTimeStat{
			user:    fields[0],
			nice:    fields[1],
			system:  fields[2],
			idle:    fields[3],
			iowait:  fields[4],
			irq:     fields[5],
			softIrq: fields[6],
			steal:   fields[7],
			guest:   fields[8],
		}
	}
	return nil
}

func (mon *systemMonitor) appendCPUMetrics(now time.Time, curr *cpuTimeStat, prev *cpuTimeStat) {
	delta := float64(curr.totalCPUTime() - prev.totalCPUTime())
	if delta <= 0 {
		return
	}
	pct := func(c, p int) report.Measurement[float64] {
		return report.Measurement[float64]{Time: now.Unix(), Value: float64(100*(c-p)) / delta}
	}
	// user time includes guest time
	mon.sm.CpuUsageUser = append(mon.sm.CpuUsageUser, pct(curr.user-curr.guest, prev.user-prev.guest))
	mon.sm.CpuUsageSystem = append(mon.sm.CpuUsageSystem, pct(curr.system, prev.system))
	mon.sm.CpuUsageIdle = append(mon.sm.CpuUsageIdle, pct(curr.idle, prev.idle))
	mon.sm.CpuUsageIowait = append(mon.sm.CpuUsageIowait, pct(curr.iowait, prev.iowait))
	mon.sm.CpuUsageSteal = append(mon.sm.CpuUsageSteal, pct(curr.steal, prev.steal))
}
