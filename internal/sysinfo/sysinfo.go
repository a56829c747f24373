// Package sysinfo stamps results with the machine that produced them.
package sysinfo

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

type Host struct {
	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	Cores    int    `json:"cores"`
	RAM      string `json:"ram"`
}

// Collect never fails: fields gopsutil cannot read are left as the Go
// runtime reports them or empty.
func Collect() Host {
	h := Host{Platform: runtime.GOOS + "/" + runtime.GOARCH, Cores: runtime.NumCPU()}
	if hs, err := host.Info(); err == nil {
		h.Hostname = hs.Hostname
		if hs.Platform != "" {
			h.Platform = hs.Platform + " " + hs.PlatformVersion
		}
	}
	if cs, err := cpu.Info(); err == nil && len(cs) > 0 {
		h.CPU = cs[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.RAM = FormatGB(vm.Total)
	}
	return h
}

func FormatGB(bytes uint64) string {
	return fmt.Sprintf("%d GB", bytes/1024/1024/1024)
}
