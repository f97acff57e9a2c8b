package voice

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// PersonalizeStep is one screen of the voice personalisation page.
type PersonalizeStep string

const (
	StepIntro      PersonalizeStep = "intro"
	StepRecording  PersonalizeStep = "recording"
	StepProcessing PersonalizeStep = "processing"
	StepResult     PersonalizeStep = "result"
)

// ProgressPerSecond is how far the processing bar advances each second.
const ProgressPerSecond = 4.3

var ErrWrongStep = errors.New("voice: action not allowed in current step")

// Personalization tracks the record-then-process flow. The clip is kept in
// memory only; nothing is uploaded.
type Personalization struct {
	interval time.Duration

	mu       sync.Mutex
	step     PersonalizeStep
	progress float64
	clip     *Clip
	stop     context.CancelFunc
}

// NewPersonalization advances processing every interval once a clip arrives.
// A zero interval leaves ticking to the caller.
func NewPersonalization(interval time.Duration) *Personalization {
	return &Personalization{step: StepIntro, interval: interval}
}

// PersonalizeView is the serialisable state.
type PersonalizeView struct {
	Step     PersonalizeStep `json:"step"`
	Progress float64         `json:"progress"`
	Clip     *Clip           `json:"clip,omitempty"`
}

func (p *Personalization) View() PersonalizeView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := PersonalizeView{Step: p.step, Progress: p.progress}
	if p.clip != nil {
		c := *p.clip
		v.Clip = &c
	}
	return v
}

// Begin moves from the intro to recording.
func (p *Personalization) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepIntro {
		return ErrWrongStep
	}
	p.step = StepRecording
	return nil
}

// ClipReady stores the finished clip and starts processing.
func (p *Personalization) ClipReady(clip Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepRecording {
		return ErrWrongStep
	}
	p.clip = &clip
	p.progress = 0
	p.step = StepProcessing
	if p.interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.stop = cancel
		go p.run(ctx)
	}
	return nil
}

func (p *Personalization) run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if p.Tick().Step != StepProcessing {
				return
			}
		}
	}
}

// Tick advances processing by one second and moves to the result once progress reaches 100.
func (p *Personalization) Tick() PersonalizeView {
	p.mu.Lock()
	if p.step == StepProcessing {
		if p.progress >= 100 {
			p.progress = 100
			p.step = StepResult
		} else {
			p.progress = math.Min(100, p.progress+ProgressPerSecond)
		}
	}
	p.mu.Unlock()
	return p.View()
}

// Finish leaves the page and forgets the clip.
func (p *Personalization) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.step = StepIntro
	p.progress = 0
	p.clip = nil
}
