package sensor

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/ipmi"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sensorOutput = `Inlet Temp       | 24.000     | degrees C  | ok    | na        | -7.000    | 3.000     | 42.000    | 47.000    | na
Exhaust Temp     | 31.000     | degrees C  | ok    | na        | 0.000     | 8.000     | 70.000    | 75.000    | na
Temp             | 36.000     | degrees C  | ok    | na        | 3.000     | 8.000     | 83.000    | 88.000    | na
Temp             | 39.000     | degrees C  | ok    | na        | 3.000     | 8.000     | 83.000    | 88.000    | na
Fan1 RPM         | 3840.000   | RPM        | ok    | na        | 360.000   | 840.000   | na        | na        | na`

type fakeSensors struct {
	rows []ipmi.SensorRow
	err  error
}

func (f *fakeSensors) Sensors(context.Context) ([]ipmi.SensorRow, error) {
	return f.rows, f.err
}

type fakeUsage struct {
	usages []float64
	err    error
	window time.Duration
	groups int
}

func (f *fakeUsage) Sample(_ context.Context, window time.Duration, groups int) ([]float64, error) {
	f.window, f.groups = window, groups
	return f.usages, f.err
}

func TestReaderRead(t *testing.T) {
	usage := &fakeUsage{usages: []float64{12.34, 80}}
	r := newReader(&fakeSensors{rows: ipmi.ParseSensorTable(sensorOutput)}, usage, time.Second)

	raw, err := r.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RawSample{
		Inlet:     "24.000",
		Exhaust:   "31.000",
		CPUTemps:  []string{"36.000", "39.000"},
		CPUUsages: []string{"12.3", "80.0"},
	}, raw)
	assert.Equal(t, time.Second, usage.window)
	assert.Equal(t, 2, usage.groups)

	s, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, 39, s.MaxTemp())
}

func TestReaderSensorFailure(t *testing.T) {
	r := newReader(&fakeSensors{err: stderrors.New("bmc busy")}, &fakeUsage{}, time.Second)

	_, err := r.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrReadFailed))
}

func TestReaderUsageFailure(t *testing.T) {
	r := newReader(&fakeSensors{rows: ipmi.ParseSensorTable(sensorOutput)}, &fakeUsage{err: stderrors.New("no /proc")}, time.Second)

	_, err := r.Read(context.Background())
	assert.True(t, errors.HasCode(err, ErrReadFailed))
}

func TestReaderNoCPURows(t *testing.T) {
	usage := &fakeUsage{usages: []float64{1}}
	r := newReader(&fakeSensors{rows: []ipmi.SensorRow{{Name: "Inlet Temp", Value: "20"}}}, usage, time.Second)

	raw, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raw.CPUTemps)
	assert.Zero(t, usage.groups)

	_, err = Validate(raw)
	assert.True(t, errors.HasCode(err, ErrInvalidSample))
}

func TestGroupUsageByPackage(t *testing.T) {
	perCore := []float64{10, 20, 90, 70}
	infos := []cpu.InfoStat{{PhysicalID: "1"}, {PhysicalID: "0"}, {PhysicalID: "1"}, {PhysicalID: "0"}}

	assert.Equal(t, []float64{45, 50}, groupUsage(perCore, infos, 2))
}

func TestGroupUsageChunks(t *testing.T) {
	perCore := []float64{10, 20, 90, 70}

	// topology unavailable
	assert.Equal(t, []float64{15, 80}, groupUsage(perCore, nil, 2))
	// topology disagrees with the BMC
	single := []cpu.InfoStat{{PhysicalID: "0"}, {PhysicalID: "0"}, {PhysicalID: "0"}, {PhysicalID: "0"}}
	assert.Equal(t, []float64{15, 80}, groupUsage(perCore, single, 2))
	// more groups than cores
	assert.Equal(t, []float64{40, 40}, groupUsage([]float64{40}, nil, 2))
	assert.Nil(t, groupUsage(perCore, nil, 0))
}

func TestGroupUsageClamps(t *testing.T) {
	assert.Equal(t, []float64{100}, groupUsage([]float64{100.4, 100.2}, nil, 1))
}

func TestUsageSampler(t *testing.T) {
	s := &cpuUsageSampler{
		percent: func(_ context.Context, interval time.Duration, percpu bool) ([]float64, error) {
			assert.True(t, percpu)
			assert.Equal(t, 250*time.Millisecond, interval)
			return []float64{30, 50}, nil
		},
		info: func(context.Context) ([]cpu.InfoStat, error) {
			return nil, stderrors.New("no cpuinfo")
		},
	}

	got, err := s.Sample(context.Background(), 250*time.Millisecond, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{40}, got)
}
