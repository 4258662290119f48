package audio

import "time"

// Frame represents a single fixed-duration frame of audio flowing through the
// pipeline. Frames are the atomic unit of audio transport — produced by a
// [FrameSource], classified by VAD, and assembled into a [Clip] by the
// segmenter. A Frame is immutable once produced.
type Frame struct {
	// PCM audio data, 16-bit signed little-endian. Sample rate and channel
	// count are determined by the source configuration.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for VAD/STT input).
	SampleRate int

	// Channels: 1 for mono (the pipeline's working format), 2 for stereo input.
	Channels int

	// Seq is the zero-based sequence index of this frame within the stream.
	// Sources must produce strictly consecutive indices.
	Seq uint64

	// Timestamp marks when this frame starts, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play length of the frame's PCM data.
func (f Frame) Duration() time.Duration {
	return pcmDuration(len(f.Data), f.SampleRate, f.Channels)
}

// Clip is one continuous speech segment (an utterance): the concatenated PCM
// of the frames judged to belong together, plus its session-relative start and
// end offsets. Produced by the segmenter, consumed by a transcription backend,
// and discarded afterwards.
type Clip struct {
	// PCM audio data, 16-bit signed little-endian.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count of PCM. Always 1 in the live pipeline.
	Channels int

	// Start is the offset of the first sample relative to session start.
	Start time.Duration

	// End is the offset just past the last sample relative to session start.
	End time.Duration
}

// Duration returns End − Start.
func (c Clip) Duration() time.Duration {
	return c.End - c.Start
}

// pcmDuration converts a byte count of 16-bit PCM into a play duration.
func pcmDuration(nbytes, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := nbytes / (2 * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
