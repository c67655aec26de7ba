package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const healthStatsTimeout = 2 * time.Second

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if err := h.core.Ping(); err != nil {
		h.logger.Error("health database ping failed", "err", err)
		database = "unavailable"
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthStatsTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      time.Since(h.startedAt).Seconds(),
		Environment: h.environment,
		AIEnabled:   h.core.AIEnabled(),
		Database:    database,
		System:      collectSystemStats(ctx),
	})
}

// collectSystemStats returns nil when host memory cannot be read.
func collectSystemStats(ctx context.Context) *systemStats {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	stats := &systemStats{MemoryUsedPercent: vm.UsedPercent, MemoryTotalBytes: vm.Total}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
			stats.ProcessRSSBytes = info.RSS
		}
	}
	return stats
}
