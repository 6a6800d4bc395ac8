package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/pose"
	"github.com/teslashibe/go-avatar/pkg/rig"
)

// execute runs the CLI from an empty directory so no avatar.yaml is found.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRigsCommand(t *testing.T) {
	out, err := execute(t, "rigs")
	require.NoError(t, err)
	assert.Equal(t, "relaxed\ntpose\n", out)
}

func TestCalibrateCommand(t *testing.T) {
	out, err := execute(t, "calibrate")
	require.NoError(t, err)

	assert.Contains(t, out, "rig tpose")
	assert.Contains(t, out, "left   elbow y 1.400 ->")
	assert.Contains(t, out, "right  elbow y 1.400 ->")
	assert.Contains(t, out, "leftUpperArm")
	assert.NotContains(t, out, "not calibrated")
}

func TestCalibrateJSON(t *testing.T) {
	out, err := execute(t, "calibrate", "--json", "--rig", "relaxed")
	require.NoError(t, err)

	var cal pose.CalibratedPose
	require.NoError(t, json.Unmarshal([]byte(out), &cal))
	for _, side := range rig.Sides {
		p := cal.Side(side)
		assert.True(t, p.Calibrated, side.String())
		assert.Greater(t, p.RestElbowY, 0.0, side.String())
	}
}

func TestCalibrateUnknownRig(t *testing.T) {
	_, err := execute(t, "calibrate", "--rig", "nope")
	assert.ErrorIs(t, err, rig.ErrRigLoad)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "rigs")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	_, err := execute(t, "run", "--for", "100ms", "--fps", "120", "--say", "hello there")
	assert.NoError(t, err)
}

func TestRunUnknownRigFile(t *testing.T) {
	_, err := execute(t, "run", "--for", "10ms", "--rig-file", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, rig.ErrRigLoad)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
