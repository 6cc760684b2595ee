package usecase

import (
	"context"
	"sort"
	"time"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

type HealthUsecase interface {
	// Check runs every probe and reports "ok" or the failure per component,
	// plus whether all of them passed.
	Check(ctx context.Context) (map[string]string, bool)
}

type healthUsecase struct {
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthUsecase(probes map[string]Probe) HealthUsecase {
	return &healthUsecase{probes: probes, timeout: 2 * time.Second}
}

func (u *healthUsecase) Check(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{"status": "ok"}
	healthy := true

	names := make([]string, 0, len(u.probes))
	for name := range u.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		probeCtx, cancel := context.WithTimeout(ctx, u.timeout)
		err := u.probes[name](probeCtx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		status["status"] = "degraded"
	}
	return status, healthy
}
