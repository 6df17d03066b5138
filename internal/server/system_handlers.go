package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystem reports host and process metrics plus per-database
// storage statistics.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"available_mb": vm.Available / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}
	if usage, err := disk.Usage(s.deps.DataDir); err == nil {
		resp["disk"] = map[string]interface{}{
			"total_mb":     usage.Total / 1024 / 1024,
			"free_mb":      usage.Free / 1024 / 1024,
			"used_percent": usage.UsedPercent,
		}
	}

	databases := make(map[string]interface{}, len(s.deps.Databases))
	for _, db := range s.deps.Databases {
		stats, err := db.GetStats()
		if err != nil {
			databases[db.Name()] = map[string]string{"error": err.Error()}
			continue
		}
		databases[db.Name()] = map[string]interface{}{
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
			"freelist_count": stats.FreelistCount,
		}
	}
	resp["databases"] = databases

	s.respondJSON(w, http.StatusOK, resp)
}
