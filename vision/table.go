package vision

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Format describes a planar YUV 4:2:0 frame: a Width x Height luma plane
// followed by the U and V chroma planes, each subsampled by two in both directions.
type Format struct {
	Width  int
	Height int
}

// DefaultFormat is the capture format of the vehicle camera
var DefaultFormat = Format{Width: 640, Height: 480}

// ChromaWidth returns the width of a chroma plane
func (f Format) ChromaWidth() int {
	return f.Width / 2
}

// ChromaHeight returns the height of a chroma plane
func (f Format) ChromaHeight() int {
	return f.Height / 2
}

// Len returns the size of a frame in bytes
func (f Format) Len() int {
	return f.Width*f.Height + 2*f.ChromaWidth()*f.ChromaHeight()
}

// UOffset returns the offset of the U plane in a frame
func (f Format) UOffset() int {
	return f.Width * f.Height
}

// Validate checks the frame dimensions are positive and even.
func (f Format) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions: %dx%d", f.Width, f.Height)
	}

	if f.Width%2 != 0 || f.Height%2 != 0 {
		return fmt.Errorf("frame dimensions must be even: %dx%d", f.Width, f.Height)
	}

	return nil
}

// Point is a ground plane position relative to the camera.
type Point struct {
	// U is the lateral offset
	U float64
	// V is the forward distance
	V float64
}

// Table maps chroma pixels of a cropped frame onto the ground plane.
// The crop keeps chroma rows Top through the bottom of the frame and every column;
// the point of chroma pixel (row, col) is stored at (row-Top)*ChromaWidth + col.
type Table struct {
	format Format
	top    int
	points []Point
}

// NewTable creates new reprojection table and returns it.
// It returns error if the format is invalid, top is outside the chroma plane
// or the number of points does not cover the cropped region.
func NewTable(f Format, top int, points []Point) (*Table, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if top < 0 || top >= f.ChromaHeight() {
		return nil, fmt.Errorf("invalid top row %d for chroma height %d", top, f.ChromaHeight())
	}

	if want := tableLen(f, top); len(points) != want {
		return nil, fmt.Errorf("invalid table size: %d, expected %d", len(points), want)
	}

	p := make([]Point, len(points))
	copy(p, points)

	return &Table{
		format: f,
		top:    top,
		points: p,
	}, nil
}

func tableLen(f Format, top int) int {
	return (f.ChromaHeight() - top) * f.ChromaWidth()
}

// ReadTable reads a reprojection table stored as little endian float32 (u, v) pairs in crop order.
func ReadTable(r io.Reader, f Format, top int) (*Table, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if top < 0 || top >= f.ChromaHeight() {
		return nil, fmt.Errorf("invalid top row %d for chroma height %d", top, f.ChromaHeight())
	}

	raw := make([]float32, 2*tableLen(f, top))
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("failed to read reprojection table: %w", err)
	}

	points := make([]Point, len(raw)/2)
	for i := range points {
		points[i] = Point{U: float64(raw[2*i]), V: float64(raw[2*i+1])}
	}

	return &Table{
		format: f,
		top:    top,
		points: points,
	}, nil
}

// Write writes the table in the format read by ReadTable.
func (t *Table) Write(w io.Writer) error {
	raw := make([]float32, 2*len(t.points))
	for i, p := range t.points {
		raw[2*i] = float32(p.U)
		raw[2*i+1] = float32(p.V)
	}

	return binary.Write(w, binary.LittleEndian, raw)
}

// Format returns the frame format the table was built for
func (t *Table) Format() Format {
	return t.format
}

// Top returns the first chroma row covered by the table
func (t *Table) Top() int {
	return t.top
}

// Len returns the number of points in the table
func (t *Table) Len() int {
	return len(t.points)
}

// At returns the ground point of chroma pixel (row, col).
// It panics if the pixel is outside the cropped region.
func (t *Table) At(row, col int) Point {
	return t.points[(row-t.top)*t.format.ChromaWidth()+col]
}
