package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjacobs/autorustler/camera"
	"github.com/tjacobs/autorustler/control"
	"github.com/tjacobs/autorustler/estimator"
	"github.com/tjacobs/autorustler/vision"
)

// DefaultTableTop is the first chroma row covered by the reprojection table
const DefaultTableTop = 120

// DefaultFPS is the camera frame rate
const DefaultFPS = 30

// Tuning represents the tuning file of the car.
// Every field is optional: omitted fields fall back to the defaults the car was tuned with.
type Tuning struct {
	// Camera params
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`
	FPS         *int `json:"fps,omitempty"`
	TableTop    *int `json:"table_top,omitempty"`

	// Lane detection params
	Threshold  *int     `json:"threshold,omitempty"`
	MinPixels  *int     `json:"min_pixels,omitempty"`
	SlopeNoise *float64 `json:"slope_noise,omitempty"`

	// Estimator params
	Step            *float64 `json:"step,omitempty"`
	UseMeasuredStep *bool    `json:"use_measured_step,omitempty"`
	AccelScale      *float64 `json:"accel_scale,omitempty"`
	MaxCurvature    *float64 `json:"max_curvature,omitempty"`

	// Controller params
	Kpy              *float64 `json:"kpy,omitempty"`
	Kvy              *float64 `json:"kvy,omitempty"`
	TractionLimit    *float64 `json:"traction_limit,omitempty"`
	MaxThrottle      *float64 `json:"max_throttle,omitempty"`
	LaneOffset       *float64 `json:"lane_offset,omitempty"`
	MinSpeed         *float64 `json:"min_speed,omitempty"`
	CurveK           *float64 `json:"curve_k,omitempty"`
	CurveMaxThrottle *float64 `json:"curve_max_throttle,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuning returns a Tuning with every field set to its default value.
func DefaultTuning() *Tuning {
	e := estimator.DefaultConfig()
	c := e.Control

	return &Tuning{
		FrameWidth:       ptrInt(vision.DefaultFormat.Width),
		FrameHeight:      ptrInt(vision.DefaultFormat.Height),
		FPS:              ptrInt(DefaultFPS),
		TableTop:         ptrInt(DefaultTableTop),
		Threshold:        ptrInt(int(e.Vision.Threshold)),
		MinPixels:        ptrInt(e.Vision.MinPixels),
		SlopeNoise:       ptrFloat64(e.Vision.SlopeNoise),
		Step:             ptrFloat64(e.Step),
		UseMeasuredStep:  ptrBool(e.UseMeasuredStep),
		AccelScale:       ptrFloat64(e.AccelScale),
		MaxCurvature:     ptrFloat64(e.MaxCurvature),
		Kpy:              ptrFloat64(c.Kpy),
		Kvy:              ptrFloat64(c.Kvy),
		TractionLimit:    ptrFloat64(c.TractionLimit),
		MaxThrottle:      ptrFloat64(c.MaxThrottle),
		LaneOffset:       ptrFloat64(c.LaneOffset),
		MinSpeed:         ptrFloat64(c.MinSpeed),
		CurveK:           ptrFloat64(c.CurveK),
		CurveMaxThrottle: ptrFloat64(c.CurveMaxThrottle),
	}
}

// LoadTuning loads a Tuning from a JSON file.
// The file must have a .json extension and be at most 1MB.
// Fields omitted from the file keep their default values, so partial files are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	t := &Tuning{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}

	return t, nil
}

// Save writes the tuning to path as indented JSON.
func (t *Tuning) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tuning: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tuning file: %w", err)
	}

	return nil
}

// Validate checks that the configuration values are valid.
func (t *Tuning) Validate() error {
	if th := t.GetThreshold(); th < 0 || th > 255 {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", th)
	}

	f := t.Format()
	if err := f.Validate(); err != nil {
		return err
	}

	if top := t.GetTableTop(); top < 0 || top >= f.ChromaHeight() {
		return fmt.Errorf("table_top must be between 0 and %d, got %d", f.ChromaHeight()-1, top)
	}

	if fps := t.GetFPS(); fps <= 0 || fps > camera.MaxFPS {
		return fmt.Errorf("fps must be between 1 and %d, got %d", camera.MaxFPS, fps)
	}

	return t.EstimatorConfig().Validate()
}

// Format returns the camera frame format.
func (t *Tuning) Format() vision.Format {
	f := vision.DefaultFormat
	if t.FrameWidth != nil {
		f.Width = *t.FrameWidth
	}
	if t.FrameHeight != nil {
		f.Height = *t.FrameHeight
	}
	return f
}

// GetFPS returns the fps value or the default.
func (t *Tuning) GetFPS() int {
	if t.FPS == nil {
		return DefaultFPS
	}
	return *t.FPS
}

// GetTableTop returns the table_top value or the default.
func (t *Tuning) GetTableTop() int {
	if t.TableTop == nil {
		return DefaultTableTop
	}
	return *t.TableTop
}

// GetThreshold returns the threshold value or the default.
func (t *Tuning) GetThreshold() int {
	if t.Threshold == nil {
		return int(vision.DefaultConfig().Threshold)
	}
	return *t.Threshold
}

// VisionConfig returns the lane detection configuration.
func (t *Tuning) VisionConfig() vision.Config {
	c := vision.DefaultConfig()
	c.Threshold = uint8(t.GetThreshold())
	if t.MinPixels != nil {
		c.MinPixels = *t.MinPixels
	}
	if t.SlopeNoise != nil {
		c.SlopeNoise = *t.SlopeNoise
	}
	return c
}

// ControllerConfig returns the controller configuration.
func (t *Tuning) ControllerConfig() control.Config {
	c := control.DefaultConfig()
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Kpy, t.Kpy)
	set(&c.Kvy, t.Kvy)
	set(&c.TractionLimit, t.TractionLimit)
	set(&c.MaxThrottle, t.MaxThrottle)
	set(&c.LaneOffset, t.LaneOffset)
	set(&c.MinSpeed, t.MinSpeed)
	set(&c.CurveK, t.CurveK)
	set(&c.CurveMaxThrottle, t.CurveMaxThrottle)
	return c
}

// EstimatorConfig returns the estimator configuration, controller included.
func (t *Tuning) EstimatorConfig() estimator.Config {
	c := estimator.DefaultConfig()
	c.Vision = t.VisionConfig()
	c.Control = t.ControllerConfig()
	if t.Step != nil {
		c.Step = *t.Step
	}
	if t.UseMeasuredStep != nil {
		c.UseMeasuredStep = *t.UseMeasuredStep
	}
	if t.AccelScale != nil {
		c.AccelScale = *t.AccelScale
	}
	if t.MaxCurvature != nil {
		c.MaxCurvature = *t.MaxCurvature
	}
	return c
}
