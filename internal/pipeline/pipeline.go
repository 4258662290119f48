// Package pipeline wires capture, classification, segmentation, and
// transcription into the live run loop and owns the session lifecycle.
//
// The design follows a single-producer/single-consumer split: a capture
// goroutine pulls frames from the [audio.FrameSource] into a bounded channel,
// and a consumer goroutine runs classification, segmentation, and backend
// dispatch. The split decouples capture cadence from transcription latency —
// the backend call is the only stage expected to block for a non-trivial
// duration. Frame ordering is preserved end-to-end.
//
// When the frame buffer fills (the backend is persistently slower than real
// time), the oldest buffered frame is dropped and counted; capture never
// halts and never corrupts ordering. Cancellation is observed at the
// frame-acquisition boundary, never mid-backend-call: once a clip is
// dispatched it either completes and is recorded, or fails and is skipped,
// but it is never abandoned silently. After cancellation the segmenter is
// flushed and any resulting utterance is drained through the same dispatch
// path before the session is finalized, so no speech captured before
// shutdown is lost.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/segment"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/stt"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// defaultBufferFrames is the frame channel capacity when none is configured.
// At 30 ms frames this buffers ~7.5 s of audio during a slow backend call.
const defaultBufferFrames = 256

// Config assembles the pipeline's collaborators. Source, Assembler, Backend,
// Recorder, and Perf are required; VAD is nil in chunk mode and Metrics is
// optional.
type Config struct {
	// Source produces the ordered frame stream.
	Source audio.FrameSource

	// VAD classifies frames as speech/non-speech. When nil every frame is
	// treated as speech (chunk mode supplies its own windowing).
	VAD vad.SessionHandle

	// Assembler turns labelled frames into utterances.
	Assembler segment.Assembler

	// Backend transcribes completed utterances.
	Backend stt.Transcriber

	// Recorder accumulates the session transcript.
	Recorder *session.Recorder

	// Perf tracks per-segment performance statistics.
	Perf *session.Perf

	// Metrics records OTel instruments. Optional.
	Metrics *observe.Metrics

	// BufferFrames is the capacity of the capture→consumer frame channel.
	// Defaults to 256 when zero or negative.
	BufferFrames int
}

// Pipeline drives the capture-to-transcript loop for one session.
type Pipeline struct {
	cfg Config

	droppedFrames int64
	dropWarn      sync.Once
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("pipeline: Source is required")
	case cfg.Assembler == nil:
		return nil, errors.New("pipeline: Assembler is required")
	case cfg.Backend == nil:
		return nil, errors.New("pipeline: Backend is required")
	case cfg.Recorder == nil:
		return nil, errors.New("pipeline: Recorder is required")
	case cfg.Perf == nil:
		return nil, errors.New("pipeline: Perf is required")
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = defaultBufferFrames
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes the session until the source is exhausted, the ctx is
// cancelled, or capture fails. It always flushes the segmenter, drains the
// final utterance through the backend, and finalizes the session — the
// returned Transcript is valid even when err is non-nil (a capture failure
// still persists whatever was transcribed up to that point).
func (p *Pipeline) Run(ctx context.Context) (session.Transcript, error) {
	frames := make(chan audio.Frame, p.cfg.BufferFrames)

	// Backend dispatch must survive ctx cancellation: in-flight and flushed
	// clips are completed on a context that only carries values.
	dispatchCtx := context.WithoutCancel(ctx)

	g, captureCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		return p.captureLoop(captureCtx, frames)
	})

	g.Go(func() error {
		p.consumeLoop(dispatchCtx, frames)
		return nil
	})

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	// Flush any in-progress utterance through the same dispatch path.
	if clip, ok := p.cfg.Assembler.Flush(); ok {
		p.dispatch(dispatchCtx, clip)
	}

	p.cfg.Perf.RecordDroppedFrames(p.droppedFrames)

	transcript, err := p.cfg.Recorder.Finalize(p.cfg.Perf.Snapshot())
	if err != nil {
		// Finalizing twice is a lifecycle bug; surface it over a capture error.
		return session.Transcript{}, fmt.Errorf("pipeline: finalize: %w", err)
	}
	return transcript, runErr
}

// captureLoop pulls frames from the source until exhaustion, failure, or
// cancellation, applying the oldest-frame-drop policy when the buffer is full.
func (p *Pipeline) captureLoop(ctx context.Context, frames chan audio.Frame) error {
	for {
		frame, err := p.cfg.Source.NextFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, audio.ErrStreamEnded), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("pipeline: capture: %w", err)
		}

		select {
		case frames <- frame:
			continue
		default:
		}

		// Buffer full: drop the oldest frame to make room. Degraded but
		// ordered — the remaining frames keep their relative order.
		select {
		case <-frames:
			p.droppedFrames++
			p.dropWarn.Do(func() {
				slog.Warn("frame buffer full, dropping oldest frames",
					"bufferFrames", cap(frames),
				)
			})
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.DroppedFrames.Add(ctx, 1)
			}
		default:
		}
		select {
		case frames <- frame:
		default:
		}
	}
}

// consumeLoop classifies and segments frames, dispatching each completed
// utterance to the backend. It drains the channel fully so frames buffered
// before cancellation are still segmented.
func (p *Pipeline) consumeLoop(dispatchCtx context.Context, frames <-chan audio.Frame) {
	for frame := range frames {
		speech := true
		if p.cfg.VAD != nil {
			var err error
			speech, err = p.cfg.VAD.ProcessFrame(frame.Data)
			if err != nil {
				// Frame size is fixed at startup, so this is a transient
				// engine failure; treat the frame as silence.
				slog.Warn("vad classification failed, treating frame as silence", "error", err)
				speech = false
			}
		}

		clip, ok := p.cfg.Assembler.Push(frame, speech)
		if !ok {
			continue
		}
		p.dispatch(dispatchCtx, clip)
	}
}

// dispatch sends one utterance through the backend and records the outcome.
// Backend failures are local to the segment: logged, counted, skipped.
func (p *Pipeline) dispatch(ctx context.Context, clip audio.Clip) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Utterances.Add(ctx, 1)
	}

	backendAttr := attribute.String("backend", p.cfg.Backend.Info().Name)

	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe", trace.WithAttributes(
		backendAttr,
		attribute.Float64("audio.duration_s", clip.Duration().Seconds()),
	))
	defer span.End()
	log := observe.Logger(ctx)

	start := time.Now()
	res, err := p.cfg.Backend.Transcribe(ctx, clip)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		log.Error("transcription failed, skipping segment",
			"start", clip.Start,
			"end", clip.End,
			"error", err,
		)
		p.cfg.Perf.RecordFailure()
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.TranscribeErrors.Add(ctx, 1, metric.WithAttributes(backendAttr))
		}
		return
	}
	if res.Text == "" {
		// The backend heard no words; not a failure.
		log.Debug("empty transcription result", "start", clip.Start, "end", clip.End)
		return
	}

	seg := session.Segment{
		Start:      clip.Start,
		End:        clip.End,
		Text:       res.Text,
		Confidence: res.Confidence,
		Language:   res.Language,
		Latency:    latency,
	}
	if err := p.cfg.Recorder.Append(seg); err != nil {
		log.Error("failed to append segment", "error", err)
		return
	}

	p.cfg.Perf.Record(clip.Duration(), latency)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.TranscribeDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(backendAttr))
		p.cfg.Metrics.AudioSeconds.Add(ctx, clip.Duration().Seconds())
	}

	log.Info("segment transcribed",
		"start", clip.Start,
		"end", clip.End,
		"confidence", res.Confidence,
		"language", res.Language,
		"latency", latency,
	)
}
