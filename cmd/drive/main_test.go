package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjacobs/autorustler/config"
	"github.com/tjacobs/autorustler/estimator"
	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/sim"
	"github.com/tjacobs/autorustler/vision"
	"gonum.org/v1/gonum/mat"
)

func TestReceiver(t *testing.T) {
	assert := assert.New(t)

	r := &receiver{frames: make(chan frame, 1)}
	buf := []byte{1, 2, 3}
	r.OnFrame(buf)
	buf[0] = 9
	r.OnFrame(buf)

	assert.Equal(1, r.Dropped())
	f := <-r.frames
	assert.Equal([]byte{1, 2, 3}, f.buf)
	assert.False(f.stamp.IsZero())
}

func TestLoadTable(t *testing.T) {
	assert := assert.New(t)

	f := vision.DefaultFormat
	top := config.DefaultTableTop

	ground, err := loadTable("", f, top)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "table.bin")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ground.Write(file))
	require.NoError(t, file.Close())

	loaded, err := loadTable(path, f, top)
	require.NoError(t, err)
	assert.Equal(ground.Len(), loaded.Len())
	assert.InDelta(ground.At(top, 10).U, loaded.At(top, 10).U, 1e-6)
	assert.InDelta(ground.At(top, 10).V, loaded.At(top, 10).V, 1e-6)

	_, err = loadTable(filepath.Join(t.TempDir(), "missing.bin"), f, top)
	assert.Error(err)
}

func TestDrive(t *testing.T) {
	assert := assert.New(t)

	table, err := sim.GroundTable(vision.DefaultFormat, config.DefaultTableTop)
	require.NoError(t, err)
	est, err := estimator.New(estimator.DefaultConfig(), table)
	require.NoError(t, err)

	x := mat.VecDenseCopyOf(model.Prior().State())
	x.SetVec(model.YE, 0.2)
	buf := sim.NewRenderer(table).Render(nil, x)

	frames := make(chan frame, 3)
	start := time.Unix(100, 0)
	for i := 0; i < 3; i++ {
		frames <- frame{stamp: start.Add(time.Duration(i) * 33 * time.Millisecond), buf: buf}
	}
	close(frames)

	var out bytes.Buffer
	n := drive(context.Background(), est, frames, &out)
	assert.Equal(3, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if assert.Len(lines, 3) {
		assert.True(strings.HasPrefix(lines[0], "0,"))
		assert.Len(strings.Split(lines[2], ","), 7)
	}
	assert.Equal(0, est.Resets())
}

func TestDriveCancel(t *testing.T) {
	assert := assert.New(t)

	table, err := sim.GroundTable(vision.DefaultFormat, config.DefaultTableTop)
	require.NoError(t, err)
	est, err := estimator.New(estimator.DefaultConfig(), table)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	n := drive(ctx, est, make(chan frame), &out)
	assert.Equal(0, n)
	assert.Empty(out.String())
}
