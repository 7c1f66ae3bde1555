// Package telemetry holds the controller's side channels: the shared
// max-temperature file and the periodic host snapshot.
package telemetry

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/afero"
)

type filePublisher struct {
	fs   afero.Fs
	path string
}

// NewPublisher writes the max temperature to cfg.MaxTempFile on fs.
func NewPublisher(fs afero.Fs, cfg Config) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &filePublisher{fs: fs, path: cfg.MaxTempFile}, nil
}

func (p *filePublisher) Publish(maxTemp int) error {
	if err := afero.WriteFile(p.fs, p.path, []byte(strconv.Itoa(maxTemp)), defaultFilePerm); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}

	return nil
}

type systemSnapshotter struct {
	fs        afero.Fs
	sysfsRoot string
	memory    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	now       func() time.Time
}

// NewSnapshotter reads memory through gopsutil and scaling frequencies from
// sysfs on fs.
func NewSnapshotter(fs afero.Fs, cfg Config) Snapshotter {
	root := cfg.SysfsRoot
	if root == "" {
		root = defaultSysfsRoot
	}

	return &systemSnapshotter{
		fs:        fs,
		sysfsRoot: root,
		memory:    mem.VirtualMemoryWithContext,
		now:       time.Now,
	}
}

func (s *systemSnapshotter) Snapshot(ctx context.Context) (*SystemSnapshot, error) {
	vm, err := s.memory(ctx)
	if err != nil {
		return nil, errors.New().Wrap(ErrSnapshotFailed, err)
	}

	return &SystemSnapshot{
		Timestamp: s.now(),
		Memory: MemoryMetrics{
			Total:       vm.Total,
			Used:        vm.Used,
			UsedPercent: vm.UsedPercent,
		},
		Frequency: s.frequencies(),
	}, nil
}

func (s *systemSnapshotter) frequencies() FrequencyMetrics {
	paths, err := afero.Glob(s.fs, filepath.Join(s.sysfsRoot, "cpu[0-9]*", "cpufreq", "scaling_cur_freq"))
	if err != nil || len(paths) == 0 {
		return FrequencyMetrics{}
	}

	sort.Slice(paths, func(i, j int) bool {
		return cpuIndex(paths[i]) < cpuIndex(paths[j])
	})

	var fm FrequencyMetrics
	sum := 0
	for _, path := range paths {
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			continue
		}
		khz, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		fm.PerCPU = append(fm.PerCPU, khz/1000)
		sum += khz / 1000
	}
	if len(fm.PerCPU) > 0 {
		fm.Average = sum / len(fm.PerCPU)
	}

	return fm
}

// cpuIndex extracts N from .../cpuN/cpufreq/scaling_cur_freq.
func cpuIndex(path string) int {
	dir := filepath.Base(filepath.Dir(filepath.Dir(path)))
	n, err := strconv.Atoi(strings.TrimPrefix(dir, "cpu"))
	if err != nil {
		return -1
	}

	return n
}
