package ipmi

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sensorOutput = `Fan1 RPM         | 3840.000   | RPM        | ok    | na        | 360.000   | 600.000   | na        | na        | na
Inlet Temp       | 24.000     | degrees C  | ok    | na        | -7.000    | 3.000     | 42.000    | 47.000    | na
Exhaust Temp     | 31.000     | degrees C  | ok    | na        | 3.000     | 8.000     | 70.000    | 75.000    | na
Temp             | 41.000     | degrees C  | ok    | na        | 3.000     | 8.000     | 83.000    | 88.000    | na
Temp             | 39.000     | degrees C  | ok    | na        | 3.000     | 8.000     | 83.000    | 88.000    | na
Current 1        | 0.400      | Amps       | ok    | na        | na        | na        | na        | na        | na
`

const fanOutput = `Fan1 RPM         | 30h | ok  |  7.1 | 3840 RPM
Fan2 RPM         | 31h | ok  |  7.1 | 3960 RPM
Fan3 RPM         | 32h | ok  |  7.1 | 3720 RPM
Fan Redundancy   | 75h | ok  |  7.1 | Fully Redundant
`

type call struct {
	name string
	args []string
}

type fakeCommand struct {
	calls   []call
	fail    int
	stdout  string
	stderr  string
	attempt int
}

func (f *fakeCommand) run(_ context.Context, name string, args ...string) (string, string, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	f.attempt++
	if f.attempt <= f.fail {
		return "", f.stderr, errors.New("exit status 1")
	}

	return f.stdout, "", nil
}

func newTestRunner(cfg Config, fc *fakeCommand) *execRunner {
	r := NewRunner(cfg, logger.Default()).(*execRunner)
	r.command = fc.run

	return r
}

func TestRunnerCommandLine(t *testing.T) {
	fc := &fakeCommand{stdout: "ok\n"}
	r := newTestRunner(Config{Path: "/usr/bin/ipmitool", Interface: "open"}, fc)

	out, err := r.Run(context.Background(), "raw", "0x30", "0x30", "0x01", "0x00")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	require.Len(t, fc.calls, 1)
	assert.Equal(t, "/usr/bin/ipmitool", fc.calls[0].name)
	assert.Equal(t, []string{"-I", "open", "raw", "0x30", "0x30", "0x01", "0x00"}, fc.calls[0].args)
}

func TestRunnerSudo(t *testing.T) {
	fc := &fakeCommand{}
	r := newTestRunner(Config{Path: "/usr/bin/ipmitool", Sudo: true}, fc)

	_, err := r.Run(context.Background(), "sensor")
	require.NoError(t, err)
	assert.Equal(t, "sudo", fc.calls[0].name)
	assert.Equal(t, []string{"/usr/bin/ipmitool", "sensor"}, fc.calls[0].args)
}

func TestRunnerRetries(t *testing.T) {
	fc := &fakeCommand{fail: 2, stdout: "done"}
	r := newTestRunner(Config{Path: "ipmitool", Retries: 3, RetryDelay: time.Millisecond}, fc)

	out, err := r.Run(context.Background(), "sensor")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Len(t, fc.calls, 3)
}

func TestRunnerGivesUp(t *testing.T) {
	fc := &fakeCommand{fail: 10, stderr: "Unable to send RAW command"}
	r := newTestRunner(Config{Path: "ipmitool", Retries: 3, RetryDelay: time.Millisecond}, fc)

	_, err := r.Run(context.Background(), "raw", "0x30")
	require.Error(t, err)
	assert.Len(t, fc.calls, 3)
	assert.True(t, apperrors.HasCode(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "Unable to send RAW command")
}

func TestRunnerStopsOnCancel(t *testing.T) {
	fc := &fakeCommand{fail: 10}
	r := newTestRunner(Config{Path: "ipmitool", Retries: 3, RetryDelay: time.Hour}, fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "sensor")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrTimeout))
	assert.Len(t, fc.calls, 1)
}

func TestRunnerEmptyCommand(t *testing.T) {
	r := newTestRunner(Config{Path: "ipmitool"}, &fakeCommand{})

	_, err := r.Run(context.Background())
	assert.True(t, apperrors.HasCode(err, ErrEmptyCommand))
}

func TestParseSensorTable(t *testing.T) {
	rows := ParseSensorTable(sensorOutput)

	require.Len(t, rows, 6)
	assert.Equal(t, SensorRow{Name: "Inlet Temp", Value: "24.000", Unit: "degrees C", Status: "ok"}, rows[1])
	assert.Equal(t, "Temp", rows[3].Name)
	assert.Equal(t, "39.000", rows[4].Value)
}

func TestParseFanRPM(t *testing.T) {
	rpm, ok := ParseFanRPM(fanOutput)
	require.True(t, ok)
	assert.Equal(t, 3840, rpm)

	_, ok = ParseFanRPM("Fan Redundancy | 75h | ok | 7.1 | Fully Redundant")
	assert.False(t, ok)
}

type scriptedRunner struct {
	outputs map[string]string
	args    [][]string
}

func (s *scriptedRunner) Run(_ context.Context, args ...string) (string, error) {
	s.args = append(s.args, args)
	return s.outputs[args[0]], nil
}

func TestClient(t *testing.T) {
	sr := &scriptedRunner{outputs: map[string]string{"sensor": sensorOutput, "sdr": fanOutput}}
	c := NewClient(sr)

	rows, err := c.Sensors(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	rpm, ok, err := c.FanRPM(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3840, rpm)

	_, err = c.Raw(context.Background(), "0x30", "0x30", "0x02", "0xff", "0x3c")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw", "0x30", "0x30", "0x02", "0xff", "0x3c"}, sr.args[2])
	assert.Equal(t, []string{"sdr", "type", "Fan"}, sr.args[1])
}
