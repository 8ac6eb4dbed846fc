//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// TotalSystemMemoryMB returns the physical memory in MB, or the cgroup limit
// when the process runs in a smaller container. 0 when unknown.
func TotalSystemMemoryMB() int {
	total := memInfoTotalMB()
	if limit := cgroupLimitMB(); limit > 0 && (total == 0 || limit < total) {
		return limit
	}
	return total
}

func memInfoTotalMB() int {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			if kb, err := strconv.Atoi(fields[1]); err == nil {
				return kb / 1024
			}
		}
	}
	return 0
}

// cgroup v2 only; "max" means unlimited
func cgroupLimitMB() int {
	data, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0
	}
	value := strings.TrimSpace(string(data))
	if value == "max" {
		return 0
	}
	bytes, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return int(bytes / 1024 / 1024)
}
