package sensor

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

type cpuUsageSampler struct {
	percent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	info    func(ctx context.Context) ([]cpu.InfoStat, error)
}

// NewUsageSampler returns a UsageSampler backed by gopsutil. Logical CPUs
// are grouped by physical package id; when that topology is unavailable or
// does not match the requested group count, they are split into equal
// contiguous chunks.
func NewUsageSampler() UsageSampler {
	return &cpuUsageSampler{
		percent: cpu.PercentWithContext,
		info:    cpu.InfoWithContext,
	}
}

func (s *cpuUsageSampler) Sample(ctx context.Context, window time.Duration, groups int) ([]float64, error) {
	perCore, err := s.percent(ctx, window, true)
	if err != nil {
		return nil, err
	}

	infos, err := s.info(ctx)
	if err != nil {
		infos = nil
	}

	return groupUsage(perCore, infos, groups), nil
}

func groupUsage(perCore []float64, infos []cpu.InfoStat, groups int) []float64 {
	if groups <= 0 || len(perCore) == 0 {
		return nil
	}

	if byPackage := groupByPackage(perCore, infos); len(byPackage) == groups {
		return byPackage
	}

	out := make([]float64, groups)
	n := len(perCore)
	for g := range out {
		start, end := g*n/groups, (g+1)*n/groups
		if start == end {
			out[g] = average(perCore)
			continue
		}
		out[g] = average(perCore[start:end])
	}

	return out
}

// groupByPackage needs one InfoStat per logical CPU, which is what gopsutil
// returns on Linux.
func groupByPackage(perCore []float64, infos []cpu.InfoStat) []float64 {
	if len(infos) != len(perCore) {
		return nil
	}

	members := map[string][]float64{}
	for i, info := range infos {
		members[info.PhysicalID] = append(members[info.PhysicalID], perCore[i])
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})

	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = average(members[id])
	}

	return out
}

func average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))

	return min(max(avg, 0), 100)
}
