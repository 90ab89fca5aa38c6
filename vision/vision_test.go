package vision

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	format Format
	points []Point
	table  *Table
)

// point returns the ground position of chroma pixel (row, col) of the test table
func point(row, col int) Point {
	return Point{U: float64(col-16) * 0.1, V: 1 + float64(row)*0.1}
}

func setup() {
	format = Format{Width: 64, Height: 64}
	points = make([]Point, 0, 32*32)
	for row := 0; row < 32; row++ {
		for col := 0; col < 32; col++ {
			points = append(points, point(row, col))
		}
	}

	var err error
	table, err = NewTable(format, 0, points)
	if err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func blank(f Format) []byte {
	frame := make([]byte, f.Len())
	for i := range frame {
		frame[i] = 128
	}

	return frame
}

func mark(f Format, frame []byte, row, col int) {
	frame[f.UOffset()+row*f.ChromaWidth()+col] = 90
}

func TestFormat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(460800, DefaultFormat.Len())
	assert.Equal(320, DefaultFormat.ChromaWidth())
	assert.Equal(240, DefaultFormat.ChromaHeight())
	assert.Equal(640*480, DefaultFormat.UOffset())
	assert.NoError(DefaultFormat.Validate())

	assert.Error(Format{Width: 0, Height: 480}.Validate())
	assert.Error(Format{Width: 641, Height: 480}.Validate())
}

func TestNewTable(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(format, table.Format())
	assert.Equal(0, table.Top())
	assert.Equal(32*32, table.Len())
	assert.Equal(point(3, 7), table.At(3, 7))

	// crop below the first row
	cropped, err := NewTable(format, 4, points[4*32:])
	assert.NoError(err)
	assert.Equal(point(4, 0), cropped.At(4, 0))
	assert.Equal(point(31, 31), cropped.At(31, 31))

	testCases := []struct {
		f      Format
		top    int
		points []Point
	}{
		{Format{Width: 3, Height: 64}, 0, points},
		{format, -1, points},
		{format, 32, points},
		{format, 0, points[1:]},
		{format, 1, points},
	}

	for _, tc := range testCases {
		tbl, err := NewTable(tc.f, tc.top, tc.points)
		assert.Nil(tbl)
		assert.Error(err)
	}
}

func TestReadTable(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))
	assert.Equal(32*32*2*4, buf.Len())

	tbl, err := ReadTable(bytes.NewReader(buf.Bytes()), format, 0)
	assert.NoError(err)
	for row := 0; row < 32; row++ {
		for col := 0; col < 32; col++ {
			assert.InDelta(point(row, col).U, tbl.At(row, col).U, 1e-6)
			assert.InDelta(point(row, col).V, tbl.At(row, col).V, 1e-6)
		}
	}

	// short table
	tbl, err = ReadTable(bytes.NewReader(buf.Bytes()[:100]), format, 0)
	assert.Nil(tbl)
	assert.Error(err)

	tbl, err = ReadTable(bytes.NewReader(buf.Bytes()), format, 40)
	assert.Nil(tbl)
	assert.Error(err)
}

func TestConfig(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	assert.Equal(uint8(112), c.Threshold)
	assert.Equal(20, c.MinPixels)
	assert.Equal(0.01, c.SlopeNoise)
	assert.NoError(c.Validate())

	c.MinPixels = 1
	assert.Error(c.Validate())

	c = DefaultConfig()
	c.SlopeNoise = -1
	assert.Error(c.Validate())

	d, err := NewDetector(nil, DefaultConfig())
	assert.Nil(d)
	assert.Error(err)

	d, err = NewDetector(table, c)
	assert.Nil(d)
	assert.Error(err)
}

func TestDetectLine(t *testing.T) {
	assert := assert.New(t)

	d, err := NewDetector(table, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(table, d.Table())

	// marking along u = v - 2.6
	frame := blank(format)
	for row := 0; row < 32; row++ {
		mark(format, frame, row, row)
	}
	// chroma at the threshold is not lane evidence
	frame[format.UOffset()+31] = 112

	fit, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Equal(32, fit.N)
	assert.InDelta(-2.6, fit.Z.AtVec(0), 1e-9)
	assert.InDelta(1.0, fit.Z.AtVec(1), 1e-9)
	assert.InDelta(0.0, fit.RSS, 1e-9)
	assert.InDelta(0.0, fit.R.At(0, 0), 1e-9)
	assert.InDelta(0.01, fit.R.At(1, 1), 1e-9)
}

func TestDetectNoisyLine(t *testing.T) {
	assert := assert.New(t)

	d, err := NewDetector(table, DefaultConfig())
	require.NoError(t, err)

	// two pixels per row straddling u = 0
	frame := blank(format)
	for row := 0; row < 32; row++ {
		mark(format, frame, row, 15)
		mark(format, frame, row, 17)
	}

	fit, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Equal(64, fit.N)
	assert.InDelta(0.0, fit.Z.AtVec(0), 1e-9)
	assert.InDelta(0.0, fit.Z.AtVec(1), 1e-9)
	// every pixel is 0.1 away from the fitted line
	assert.InDelta(64*0.01, fit.RSS, 1e-9)
	assert.Greater(fit.R.At(0, 0), 0.0)
	assert.Greater(fit.R.At(1, 1), 0.01)
	assert.Equal(fit.R.At(0, 1), fit.R.At(1, 0))
}

func TestDetectAbstain(t *testing.T) {
	assert := assert.New(t)

	d, err := NewDetector(table, DefaultConfig())
	require.NoError(t, err)

	fit, err := d.Detect(make([]byte, 10))
	assert.Nil(fit)
	assert.ErrorIs(err, ErrFrameLength)

	// 19 pixels are not enough
	frame := blank(format)
	for row := 0; row < 19; row++ {
		mark(format, frame, row, row)
	}
	fit, err = d.Detect(frame)
	assert.Nil(fit)
	assert.ErrorIs(err, ErrTooFewPixels)

	// a single row does not determine the slope
	frame = blank(format)
	for col := 0; col < 32; col++ {
		mark(format, frame, 0, col)
	}
	fit, err = d.Detect(frame)
	assert.Nil(fit)
	assert.ErrorIs(err, ErrSingularFit)
}
