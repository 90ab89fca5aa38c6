package camera

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"
)

// Recorder writes the frames it receives to a recording.
// It implements drive.FrameReceiver and StampedReceiver.
type Recorder struct {
	w   io.Writer
	now func() time.Time

	mu     sync.Mutex
	frames int
	err    error
}

// NewRecorder creates new recorder writing to w and returns it
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		w:   w,
		now: time.Now,
	}
}

// OnFrame records buf with the current time.
func (r *Recorder) OnFrame(buf []byte) {
	r.OnFrameAt(r.now(), buf)
}

// OnFrameAt records buf with capture time stamp.
// Recording stops at the first write error, which is reported by Err.
func (r *Recorder) OnFrameAt(stamp time.Time, buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}

	var hdr [headerLen]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(stamp.Unix()))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(stamp.Nanosecond()/int(time.Microsecond)))

	if _, err := r.w.Write(hdr[:]); err != nil {
		r.err = fmt.Errorf("failed to write frame header: %w", err)
		return
	}

	if _, err := r.w.Write(buf); err != nil {
		r.err = fmt.Errorf("failed to write frame: %w", err)
		return
	}

	r.frames++
}

// Frames returns the number of frames recorded
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.frames
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}
