package sensor

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/ipmi"
)

// BMC sensor names as printed by `ipmitool sensor` on PowerEdge chassis.
// CPU package temperatures carry the bare name "Temp", one row per socket.
const (
	sensorInlet   = "Inlet Temp"
	sensorExhaust = "Exhaust Temp"
	sensorCPU     = "Temp"
)

// Reader produces one raw sample per call. Implementations block for at
// least the configured usage window.
type Reader interface {
	Read(ctx context.Context) (RawSample, error)
}

// UsageSampler measures utilization over window and returns one value per
// physical CPU; groups is the number of CPUs the BMC reports.
type UsageSampler interface {
	Sample(ctx context.Context, window time.Duration, groups int) ([]float64, error)
}

type sensorSource interface {
	Sensors(ctx context.Context) ([]ipmi.SensorRow, error)
}

type reader struct {
	sensors sensorSource
	usage   UsageSampler
	window  time.Duration
}

func NewReader(client *ipmi.Client, usage UsageSampler, window time.Duration) Reader {
	return newReader(client, usage, window)
}

func newReader(sensors sensorSource, usage UsageSampler, window time.Duration) *reader {
	return &reader{sensors: sensors, usage: usage, window: window}
}

func (r *reader) Read(ctx context.Context) (RawSample, error) {
	errFactory := errors.New()

	rows, err := r.sensors.Sensors(ctx)
	if err != nil {
		return RawSample{}, errFactory.Wrap(ErrReadFailed, err)
	}

	raw := TemperaturesFromRows(rows)
	if len(raw.CPUTemps) == 0 {
		// nothing to pair usages with; Validate reports the missing CPUs
		return raw, nil
	}

	usages, err := r.usage.Sample(ctx, r.window, len(raw.CPUTemps))
	if err != nil {
		return RawSample{}, errFactory.Wrap(ErrReadFailed, err)
	}

	raw.CPUUsages = make([]string, len(usages))
	for i, u := range usages {
		raw.CPUUsages[i] = strconv.FormatFloat(u, 'f', 1, 64)
	}

	return raw, nil
}

// TemperaturesFromRows picks the inlet, exhaust and CPU temperature values
// out of a sensor table. Missing rows leave the field empty.
func TemperaturesFromRows(rows []ipmi.SensorRow) RawSample {
	var raw RawSample

	for _, row := range rows {
		switch row.Name {
		case sensorInlet:
			raw.Inlet = row.Value
		case sensorExhaust:
			raw.Exhaust = row.Value
		case sensorCPU:
			raw.CPUTemps = append(raw.CPUTemps, row.Value)
		}
	}

	return raw
}
