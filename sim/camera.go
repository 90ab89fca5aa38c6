package sim

import (
	"fmt"
	"math"

	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/vision"
	"gonum.org/v1/gonum/mat"
)

const (
	// Near is the forward distance seen by the bottom chroma row
	Near = 0.3
	// RowStep is the forward distance between two chroma rows
	RowStep = 0.01
)

// GroundTable returns a reprojection table of a camera looking ahead over flat ground.
// Forward distance grows by RowStep per chroma row up from the bottom of the frame and
// the field of view widens with distance: at forward distance V the columns span [-V, V].
func GroundTable(f vision.Format, top int) (*vision.Table, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	cw, ch := f.ChromaWidth(), f.ChromaHeight()
	if top < 0 || top >= ch {
		return nil, fmt.Errorf("invalid top row %d for chroma height %d", top, ch)
	}

	points := make([]vision.Point, 0, (ch-top)*cw)
	for row := top; row < ch; row++ {
		v := Near + float64(ch-1-row)*RowStep
		for col := 0; col < cw; col++ {
			u := (2*(float64(col)+0.5)/float64(cw) - 1) * v
			points = append(points, vision.Point{U: u, V: v})
		}
	}

	return vision.NewTable(f, top, points)
}

// Renderer draws the lane marking as seen from the car into YUV frames.
type Renderer struct {
	// HalfWidth is half the width of the lane marking
	HalfWidth float64
	// Lane is the chroma U value of the marking
	Lane byte
	// Background is the chroma U value of the floor
	Background byte

	table *vision.Table
}

// NewRenderer creates new renderer for frames covered by table and returns it
func NewRenderer(table *vision.Table) *Renderer {
	return &Renderer{
		HalfWidth:  0.025,
		Lane:       90,
		Background: 128,
		table:      table,
	}
}

// Render draws the marking of the lane for car state x and returns the frame.
// The marking is the straight line u = ye/cos(psie) + tan(psie)*v.
// dst is reused when its length matches the frame format.
func (r *Renderer) Render(dst []byte, x mat.Vector) []byte {
	f := r.table.Format()
	if len(dst) != f.Len() {
		dst = make([]byte, f.Len())
	}

	for i := range dst {
		dst[i] = r.Background
	}

	ye, psie := x.AtVec(model.YE), x.AtVec(model.PsiE)
	b0, b1 := ye/math.Cos(psie), math.Tan(psie)

	cw := f.ChromaWidth()
	uplane := dst[f.UOffset():]
	for row := r.table.Top(); row < f.ChromaHeight(); row++ {
		for col := 0; col < cw; col++ {
			p := r.table.At(row, col)
			if math.Abs(p.U-(b0+b1*p.V)) < r.HalfWidth {
				uplane[row*cw+col] = r.Lane
			}
		}
	}

	return dst
}
