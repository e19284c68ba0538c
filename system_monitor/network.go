package systemmonitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

type netDevStat struct {
	iface       string
	recvBytes   int
	recvPackets int
	sendBytes   int
	sendPackets int
}

// Loopback is skipped, it never carries race traffic.
func parseNetDevStats(buf []byte) []netDevStat {
	out := []netDevStat{}
	for _, line := range strings.Split(string(buf), "\n") {
		iface, counters, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		parts := strings.Fields(counters)
		if len(parts) != 16 {
			continue
		}
		iface = strings.TrimSpace(iface)
		if iface == "lo" {
			continue
		}
		stat := netDevStat{iface: iface}
		stat.recvBytes, _ = strconv.Atoi(parts[0])
		stat.recvPackets, _ = strconv.Atoi(parts[1])
		stat.sendBytes, _ = strconv.Atoi(parts[8])
		stat.sendPackets, _ = strconv.Atoi(parts[9])
		out = append(out, stat)
	}
	return out
}

func (mon *systemMonitor) appendNetworkMetrics(now time.Time, buf []byte) {
	device := func(name string, v int) report.DeviceMeasurement[int] {
		return report.DeviceMeasurement[int]{
			DeviceName:  name,
			Measurement: report.Measurement[int]{Time: now.Unix(), Value: v},
		}
	}
	for _, s := range parseNetDevStats(buf) {
		mon.sm.NetBytesSent = append(mon.sm.NetBytesSent, device(s.iface, s.sendBytes))
		mon.sm.NetBytesRecv = append(mon.sm.NetBytesRecv, device(s.iface, s.recvBytes))
		mon.sm.NetPacketsSent = append(mon.sm.NetPacketsSent, device(s.iface, s.sendPackets))
		mon.sm.NetPacketsRecv = append(mon.sm.NetPacketsRecv, device(s.iface, s.recvPackets))
	}
}
