// Package camera provides recording and replay of raw camera frames.
//
// A recording is a sequence of records, each made of the capture time as two little
// endian int64 values (seconds and microseconds since the Unix epoch) followed by
// one raw YUV 4:2:0 frame.
package camera

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	drive "github.com/tjacobs/autorustler"
	"github.com/tjacobs/autorustler/vision"
)

// headerLen is the size of the timestamp preceding every frame
const headerLen = 16

// MaxFPS is the highest delivery rate a Replay can be paced at
const MaxFPS = int(time.Second)

// StampedReceiver is a FrameReceiver that also wants the capture time of every frame.
type StampedReceiver interface {
	drive.FrameReceiver
	// OnFrameAt is called instead of OnFrame with the recorded capture time of buf
	OnFrameAt(stamp time.Time, buf []byte)
}

// Replay implements drive.Camera by delivering the frames of a recording.
// Frames are delivered from a separate goroutine, one every 1/fps seconds.
//
// If the recording reader implements io.Closer, StopRecord closes it to interrupt
// a blocked read and the replay can not be started again. Otherwise StopRecord
// waits for the pending read to return.
type Replay struct {
	r io.Reader

	format vision.Format
	fps    int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	frames int
	err    error
}

// NewReplay creates new replay of the recording read from r and returns it
func NewReplay(r io.Reader) *Replay {
	return &Replay{r: r}
}

// Init sets the frame size of the recording and the delivery rate.
func (c *Replay) Init(width, height, fps int) error {
	f := vision.Format{Width: width, Height: height}
	if err := f.Validate(); err != nil {
		return err
	}

	if fps <= 0 || fps > MaxFPS {
		return fmt.Errorf("invalid frame rate: %d", fps)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return fmt.Errorf("replay is running")
	}

	c.format = f
	c.fps = fps

	return nil
}

// StartRecord starts delivering frames to r.
// It returns error if the replay has not been initialized or is already running.
func (c *Replay) StartRecord(r drive.FrameReceiver) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fps == 0 {
		return fmt.Errorf("replay is not initialized")
	}

	if c.cancel != nil {
		return fmt.Errorf("replay is running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.wg.Add(1)
	go c.run(ctx, cancel, r, c.done)

	return nil
}

func (c *Replay) run(ctx context.Context, cancel context.CancelFunc, r drive.FrameReceiver, done chan struct{}) {
	defer c.wg.Done()
	defer func() {
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	var hdr [headerLen]byte
	buf := make([]byte, c.format.Len())
	for {
		if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.setErr(fmt.Errorf("failed to read frame header: %w", err))
			}
			return
		}

		if _, err := io.ReadFull(c.r, buf); err != nil {
			if ctx.Err() == nil {
				c.setErr(fmt.Errorf("failed to read frame: %w", err))
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sec := int64(binary.LittleEndian.Uint64(hdr[0:8]))
		usec := int64(binary.LittleEndian.Uint64(hdr[8:16]))

		if sr, ok := r.(StampedReceiver); ok {
			sr.OnFrameAt(time.Unix(sec, usec*int64(time.Microsecond)), buf)
		} else {
			r.OnFrame(buf)
		}

		c.mu.Lock()
		c.frames++
		c.mu.Unlock()
	}
}

func (c *Replay) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.err = err
}

// StopRecord stops frame delivery and waits for the frame being delivered to be consumed.
func (c *Replay) StopRecord() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	if rc, ok := c.r.(io.Closer); ok {
		// a failed close leaves the read to end on its own
		_ = rc.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
}

// Done returns a channel closed when the replay stops delivering frames,
// either because the recording ended or StopRecord was called.
// It returns nil if the replay has never been started.
func (c *Replay) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// Frames returns the number of frames delivered so far
func (c *Replay) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frames
}

// Err returns the error that ended the replay, if any.
// A recording that ends at a record boundary is not an error.
func (c *Replay) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}
