// Package telemetry reads host health figures exposed next to the rig state:
// uptime, load, CPU temperature and network addresses.
package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
)

// Snapshot is a point-in-time reading. Fields that could not be read are zero and the
// cause is listed in Errors.
type Snapshot struct {
	Timestamp      time.Time     `json:"timestamp"`
	Uptime         time.Duration `json:"uptime"`
	Load1          float64       `json:"load1"`
	Load5          float64       `json:"load5"`
	Load15         float64       `json:"load15"`
	CPUTemperature float64       `json:"cpu_temperature_celsius"`
	ThermalZone    string        `json:"thermal_zone,omitempty"`
	Addresses      []string      `json:"addresses"`
	Errors         []string      `json:"errors,omitempty"`
}

// Reader reads telemetry from procfs and sysfs.
type Reader struct {
	proc  procfs.FS
	sys   sysfs.FS
	now   func() time.Time
	addrs func() ([]net.Addr, error)
}

// NewReader opens the proc and sys mount points. Empty strings use /proc and /sys.
func NewReader(procRoot, sysRoot string) (*Reader, error) {
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	if sysRoot == "" {
		sysRoot = sysfs.DefaultMountPoint
	}
	proc, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	sys, err := sysfs.NewFS(sysRoot)
	if err != nil {
		return nil, fmt.Errorf("open sysfs: %w", err)
	}
	return &Reader{
		proc:  proc,
		sys:   sys,
		now:   time.Now,
		addrs: net.InterfaceAddrs,
	}, nil
}

// Uptime returns the time since boot.
func (r *Reader) Uptime() (time.Duration, error) {
	stat, err := r.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("read stat: %w", err)
	}
	boot := time.Unix(int64(stat.BootTime), 0)
	return r.now().Sub(boot).Truncate(time.Second), nil
}

// Load returns the 1, 5 and 15 minute load averages.
func (r *Reader) Load() (load1, load5, load15 float64, err error) {
	avg, err := r.proc.LoadAvg()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read loadavg: %w", err)
	}
	return avg.Load1, avg.Load5, avg.Load15, nil
}

// CPUTemperature returns the temperature in degrees Celsius of the CPU thermal zone.
// Zones typed cpu or soc are preferred, otherwise the first zone is used.
func (r *Reader) CPUTemperature() (celsius float64, zone string, err error) {
	zones, err := r.sys.ClassThermalZoneStats()
	if err != nil {
		return 0, "", fmt.Errorf("read thermal zones: %w", err)
	}
	if len(zones) == 0 {
		return 0, "", errors.New("no thermal zones")
	}

	pick := zones[0]
	for _, z := range zones {
		t := strings.ToLower(z.Type)
		if strings.Contains(t, "cpu") || strings.Contains(t, "soc") {
			pick = z
			break
		}
	}
	return float64(pick.Temp) / 1000, pick.Type, nil
}

// Addresses returns the non-loopback interface addresses.
func (r *Reader) Addresses() ([]string, error) {
	addrs, err := r.addrs()
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ipnet.IP.String())
	}
	return out, nil
}

// Read collects every figure. It never fails as a whole.
func (r *Reader) Read() Snapshot {
	s := Snapshot{Timestamp: r.now(), Addresses: []string{}}
	record := func(err error) {
		if err != nil {
			s.Errors = append(s.Errors, err.Error())
		}
	}

	var err error
	s.Uptime, err = r.Uptime()
	record(err)
	s.Load1, s.Load5, s.Load15, err = r.Load()
	record(err)
	s.CPUTemperature, s.ThermalZone, err = r.CPUTemperature()
	record(err)
	if addrs, err := r.Addresses(); err != nil {
		record(err)
	} else {
		s.Addresses = addrs
	}
	return s
}
