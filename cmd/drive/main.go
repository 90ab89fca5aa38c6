package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tjacobs/autorustler/camera"
	"github.com/tjacobs/autorustler/config"
	"github.com/tjacobs/autorustler/estimator"
	"github.com/tjacobs/autorustler/model"
	"github.com/tjacobs/autorustler/sim"
	"github.com/tjacobs/autorustler/vision"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	recording = flag.String("recording", "", "Path to the camera recording to replay")
	tableFile = flag.String("table", "", "Path to the reprojection table (default: flat ground table)")
	tuning    = flag.String("config", "", "Path to the JSON tuning file (default: built-in tuning)")
	verbose   = flag.Int("v", 0, "Log verbosity: 0 ops, 1 ops+diag, 2 ops+diag+trace")
	queue     = flag.Int("queue", 4, "Number of frames buffered between camera and control loop")
)

// frame is a camera frame handed over to the control loop
type frame struct {
	stamp time.Time
	buf   []byte
}

// receiver copies frames delivered by the camera onto a channel.
// Frames are dropped when the control loop falls behind.
type receiver struct {
	frames chan frame

	mu      sync.Mutex
	dropped int
}

func (r *receiver) OnFrame(buf []byte) {
	r.OnFrameAt(time.Now(), buf)
}

func (r *receiver) OnFrameAt(stamp time.Time, buf []byte) {
	f := frame{stamp: stamp, buf: make([]byte, len(buf))}
	copy(f.buf, buf)

	select {
	case r.frames <- f:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

func (r *receiver) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dropped
}

func loadTable(path string, f vision.Format, top int) (*vision.Table, error) {
	if path == "" {
		return sim.GroundTable(f, top)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer file.Close()

	return vision.ReadTable(file, f, top)
}

func setupLogging(level int) {
	var diag, trace io.Writer
	if level >= 1 {
		diag = os.Stderr
	}
	if level >= 2 {
		trace = os.Stderr
	}
	estimator.SetLogWriters(os.Stderr, diag, trace)
}

// drive runs the control loop until the frames channel is closed or ctx is cancelled.
// Every cycle prints the frame number, the lane pose estimate and the issued commands.
func drive(ctx context.Context, e *estimator.Estimator, frames <-chan frame, out io.Writer) int {
	var (
		throttle, steering float64
		last               time.Time
		n                  int
	)

	// recordings carry no inertial log: the IMU reads as a car at rest
	var accel, gyro r3.Vec

	for {
		select {
		case <-ctx.Done():
			return n
		case f, ok := <-frames:
			if !ok {
				return n
			}

			dt := 0.0
			if !last.IsZero() {
				dt = f.stamp.Sub(last).Seconds()
			}
			last = f.stamp

			e.UpdateState(f.buf, throttle, steering, accel, gyro, dt)
			throttle, steering = e.GetControl()

			x := e.State()
			fmt.Fprintf(out, "%d,%.4f,%.4f,%.4f,%.4f,%.3f,%.3f\n",
				n, x[model.YE], x[model.PsiE], x[model.V], x[model.K], throttle, steering)
			n++
		}
	}
}

func main() {
	flag.Parse()

	if *recording == "" {
		log.Fatalf("missing -recording")
	}

	setupLogging(*verbose)

	cfg := config.DefaultTuning()
	if *tuning != "" {
		var err error
		cfg, err = config.LoadTuning(*tuning)
		if err != nil {
			log.Fatalf("Failed to load tuning: %v", err)
		}
	}

	format := cfg.Format()
	table, err := loadTable(*tableFile, format, cfg.GetTableTop())
	if err != nil {
		log.Fatalf("Failed to load reprojection table: %v", err)
	}

	est, err := estimator.New(cfg.EstimatorConfig(), table)
	if err != nil {
		log.Fatalf("Failed to create estimator: %v", err)
	}

	file, err := os.Open(*recording)
	if err != nil {
		log.Fatalf("Failed to open recording: %v", err)
	}
	defer file.Close()

	cam := camera.NewReplay(file)
	if err := cam.Init(format.Width, format.Height, cfg.GetFPS()); err != nil {
		log.Fatalf("Failed to initialize camera: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rcv := &receiver{frames: make(chan frame, *queue)}
	if err := cam.StartRecord(rcv); err != nil {
		log.Fatalf("Failed to start camera: %v", err)
	}

	// close the frame channel once the camera stops delivering
	go func() {
		<-cam.Done()
		close(rcv.frames)
	}()

	start := time.Now()
	n := drive(ctx, est, rcv.frames, os.Stdout)
	cam.StopRecord()

	if err := cam.Err(); err != nil {
		log.Printf("Recording ended early: %v", err)
	}

	log.Printf("Processed %d frames in %v (dropped %d, resets %d, mode %v)",
		n, time.Since(start).Round(time.Millisecond), rcv.Dropped(), est.Resets(), est.Mode())
}
