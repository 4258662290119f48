package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// banner is the separator line used throughout the transcript file.
const banner = "======================================================================"

// ContinuousText returns all segment texts joined into one string — the
// transcript as continuous prose, without timestamps or confidence detail.
func (t Transcript) ContinuousText() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// Render writes the full transcript document to w: a metadata header block,
// the detailed per-segment listing, and the continuous rendering. Both views
// are produced from the same underlying segment sequence.
func (t Transcript) Render(w io.Writer) error {
	m := t.Metadata

	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("VOXSCRIBE TRANSCRIPTION SESSION\n")
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "Session started: %s\n", m.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Session ended: %s\n", m.EndedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Backend: %s\n", m.Backend.Name)
	fmt.Fprintf(&b, "Model: %s\n", m.Backend.Model)
	if m.Backend.Device != "" {
		fmt.Fprintf(&b, "Device: %s\n", m.Backend.Device)
	}
	if m.Backend.ComputeType != "" {
		fmt.Fprintf(&b, "Compute type: %s\n", m.Backend.ComputeType)
	}
	if m.VADEngine != "" {
		fmt.Fprintf(&b, "VAD engine: %s (aggressiveness %d)\n", m.VADEngine, m.VADAggressiveness)
	}
	fmt.Fprintf(&b, "Segmenter mode: %s\n", m.SegmenterMode)
	fmt.Fprintf(&b, "Total segments: %d\n", m.Perf.Segments)
	if m.Perf.Failures > 0 {
		fmt.Fprintf(&b, "Failed segments: %d\n", m.Perf.Failures)
	}
	if m.Perf.DroppedFrames > 0 {
		fmt.Fprintf(&b, "Dropped frames: %d\n", m.Perf.DroppedFrames)
	}
	fmt.Fprintf(&b, "Total audio: %.2fs\n", m.Perf.Audio.Seconds())
	if m.Perf.Segments > 0 {
		fmt.Fprintf(&b, "Average transcription time: %.2fs\n", m.Perf.AvgLatency().Seconds())
		fmt.Fprintf(&b, "Real-time factor: %.2f\n", m.Perf.RealTimeFactor)
	}

	b.WriteString("\n" + banner + "\n")
	b.WriteString("DETAILED TRANSCRIPT\n")
	b.WriteString(banner + "\n\n")

	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "[%s → %s] Segment %d\n", formatOffset(seg.Start), formatOffset(seg.End), i+1)
		fmt.Fprintf(&b, "Text: %s\n", seg.Text)
		fmt.Fprintf(&b, "Confidence: %.2f\n", seg.Confidence)
		if seg.Language != "" {
			fmt.Fprintf(&b, "Language: %s\n", seg.Language)
		}
		fmt.Fprintf(&b, "Processing time: %.2fs\n", seg.Latency.Seconds())
		b.WriteString(strings.Repeat("-", 50) + "\n\n")
	}

	b.WriteString(banner + "\n")
	b.WriteString("CONTINUOUS TRANSCRIPT\n")
	b.WriteString(banner + "\n\n")
	b.WriteString(t.ContinuousText())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// formatOffset renders a session-relative offset as HH:MM:SS.mmm.
func formatOffset(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// Writer persists finalized transcripts as timestamped text files in a
// designated output directory, created on first use.
type Writer struct {
	// Dir is the output directory for transcript files.
	Dir string
}

// Save renders the transcript to a file named after the session start time
// (transcript_YYYYMMDD_HHMMSS.txt) inside the writer's directory. It returns
// the path of the written file.
func (w Writer) Save(t Transcript) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("session: create output dir %q: %w", w.Dir, err)
	}

	name := fmt.Sprintf("transcript_%s.txt", t.Metadata.StartedAt.Format("20060102_150405"))
	path := filepath.Join(w.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("session: create transcript file: %w", err)
	}
	defer f.Close()

	if err := t.Render(f); err != nil {
		return "", fmt.Errorf("session: write transcript: %w", err)
	}

	slog.Info("transcript saved",
		"path", path,
		"segments", len(t.Segments),
	)
	return path, nil
}
