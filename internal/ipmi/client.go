package ipmi

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Client issues the handful of ipmitool commands the controller needs.
type Client struct {
	runner Runner
}

func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// Raw sends `raw <bytes...>` to the BMC.
func (c *Client) Raw(ctx context.Context, data ...string) (string, error) {
	return c.runner.Run(ctx, append([]string{"raw"}, data...)...)
}

// Sensors returns the parsed rows of `ipmitool sensor`.
func (c *Client) Sensors(ctx context.Context) ([]SensorRow, error) {
	out, err := c.runner.Run(ctx, "sensor")
	if err != nil {
		return nil, err
	}

	return ParseSensorTable(out), nil
}

// FanRPM returns the average reading of the chassis fans Fan1..Fan6.
// ok is false when no fan row could be parsed.
func (c *Client) FanRPM(ctx context.Context) (rpm int, ok bool, err error) {
	out, err := c.runner.Run(ctx, "sdr", "type", "Fan")
	if err != nil {
		return 0, false, err
	}

	rpm, ok = ParseFanRPM(out)

	return rpm, ok, nil
}

// SensorRow is one line of `ipmitool sensor` output:
//
//	Inlet Temp       | 24.000     | degrees C  | ok    | na | ...
type SensorRow struct {
	Name   string
	Value  string
	Unit   string
	Status string
}

// ParseSensorTable splits pipe separated sensor output into rows. Lines with
// fewer than two columns are skipped.
func ParseSensorTable(output string) []SensorRow {
	var rows []SensorRow

	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		row := SensorRow{Name: parts[0], Value: parts[1]}
		if len(parts) > 2 {
			row.Unit = parts[2]
		}
		if len(parts) > 3 {
			row.Status = parts[3]
		}
		rows = append(rows, row)
	}

	return rows
}

var fanNameRe = regexp.MustCompile(`^Fan[1-6]\b`)

// ParseFanRPM averages the reading column of `sdr type Fan` rows named Fan1..Fan6:
//
//	Fan1 RPM         | 30h | ok  |  7.1 | 3840 RPM
func ParseFanRPM(output string) (int, bool) {
	sum, count := 0, 0

	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 5 || !fanNameRe.MatchString(strings.TrimSpace(parts[0])) {
			continue
		}

		fields := strings.Fields(parts[4])
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		sum += int(value)
		count++
	}

	if count == 0 {
		return 0, false
	}

	return sum / count, true
}
