// Package voice captures microphone audio streamed from the browser: it gates
// on permission, buffers encoded chunks into a clip and reports visualiser levels.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrPermissionDenied = errors.New("voice: microphone permission denied")
	ErrAlreadyRecording = errors.New("voice: already recording")
	ErrNotRecording     = errors.New("voice: not recording")
	ErrClipTooLarge     = errors.New("voice: clip exceeds size limit")
)

// DefaultMIMEType is the container produced by browser media recorders.
const DefaultMIMEType = "audio/webm"

// PermissionState mirrors the browser's microphone permission.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Permission asks the capture device for microphone access.
type Permission interface {
	Request(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

func (f PermissionFunc) Request(ctx context.Context) (bool, error) { return f(ctx) }

// Clip is one finished recording.
type Clip struct {
	Data     []byte        `json:"-"`
	Size     int           `json:"size"`
	MIMEType string        `json:"mimeType"`
	Duration time.Duration `json:"duration"`
}

// Config sizes a Recorder.
type Config struct {
	Bars     int
	FFTSize  int
	MaxBytes int
	MIMEType string
}

// Recorder holds the state of one capture device.
type Recorder struct {
	cfg      Config
	analyser *Analyser

	mu         sync.Mutex
	permission PermissionState
	recording  bool
	chunks     bytes.Buffer
	levels     []float64
	elapsed    int
}

func NewRecorder(cfg Config) *Recorder {
	if cfg.Bars <= 0 {
		cfg.Bars = 48
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = 256
	}
	if cfg.MIMEType == "" {
		cfg.MIMEType = DefaultMIMEType
	}
	return &Recorder{
		cfg:        cfg,
		analyser:   NewAnalyser(cfg.FFTSize, cfg.Bars),
		permission: PermissionUnknown,
		levels:     make([]float64, cfg.Bars),
	}
}

// RequestPermission asks p for access and records the answer.
func (r *Recorder) RequestPermission(ctx context.Context, p Permission) (PermissionState, error) {
	granted, err := p.Request(ctx)
	state := PermissionDenied
	if err == nil && granted {
		state = PermissionGranted
	}
	r.SetPermission(state == PermissionGranted)
	if err != nil {
		return state, fmt.Errorf("request microphone permission: %w", err)
	}
	return state, nil
}

// SetPermission records the permission answer reported by the device.
func (r *Recorder) SetPermission(granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if granted {
		r.permission = PermissionGranted
	} else {
		r.permission = PermissionDenied
	}
}

func (r *Recorder) Permission() PermissionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.permission
}

// Start begins a recording. Without granted permission it fails with
// ErrPermissionDenied; callers may request permission again and retry.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.permission != PermissionGranted {
		return ErrPermissionDenied
	}
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.chunks.Reset()
	r.elapsed = 0
	r.zeroLevelsLocked()
	return nil
}

// Write appends one encoded chunk. Empty chunks are ignored.
func (r *Recorder) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	if len(chunk) == 0 {
		return nil
	}
	if r.cfg.MaxBytes > 0 && r.chunks.Len()+len(chunk) > r.cfg.MaxBytes {
		return ErrClipTooLarge
	}
	r.chunks.Write(chunk)
	return nil
}

// Analyze updates the visualiser levels from a PCM frame while recording.
func (r *Recorder) Analyze(pcm []int16) []float64 {
	levels := r.analyser.Levels(pcm)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return append([]float64(nil), r.levels...)
	}
	r.levels = levels
	return append([]float64(nil), levels...)
}

// TickSecond advances the elapsed recording time by one second.
func (r *Recorder) TickSecond() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.elapsed++
	}
	return r.elapsed
}

// Stop ends the recording and returns all chunks as one clip. Levels are zeroed.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return Clip{}, ErrNotRecording
	}
	data := append([]byte(nil), r.chunks.Bytes()...)
	clip := Clip{
		Data:     data,
		Size:     len(data),
		MIMEType: r.cfg.MIMEType,
		Duration: time.Duration(r.elapsed) * time.Second,
	}
	r.recording = false
	r.chunks.Reset()
	r.elapsed = 0
	r.zeroLevelsLocked()
	return clip, nil
}

// Abort discards an in-progress recording.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.chunks.Reset()
	r.elapsed = 0
	r.zeroLevelsLocked()
}

func (r *Recorder) zeroLevelsLocked() {
	r.levels = make([]float64, r.cfg.Bars)
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Levels always has exactly Bars entries.
func (r *Recorder) Levels() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.levels...)
}

func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Clock renders the elapsed time as MM:SS.
func (r *Recorder) Clock() string {
	e := r.Elapsed()
	return fmt.Sprintf("%02d:%02d", e/60, e%60)
}
