package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// bitsPerSample is fixed at 16 for the signed little-endian PCM audio the
// pipeline works with.
const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct inclusion
// in a multipart form upload. No external dependencies are required.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV parses a RIFF/WAV container holding 16-bit PCM and returns the
// raw sample data plus its format. Only uncompressed 16-bit PCM is supported;
// other codecs and container formats are the job of an external decoder.
func DecodeWAV(data []byte) (pcm []byte, format Format, err error) {
	if len(data) < 44 {
		return nil, Format{}, errors.New("audio: wav data shorter than header")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE file")
	}

	// Walk the sub-chunks; "fmt " and "data" may be separated by extension
	// chunks (LIST, fact, …) written by some encoders.
	var (
		haveFmt    bool
		audioFmt   uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, errors.New("audio: wav fmt chunk too short")
			}
			audioFmt = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("audio: wav data chunk before fmt chunk")
			}
			if audioFmt != 1 {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav codec %d (only PCM)", audioFmt)
			}
			if bits != bitsPerSample {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav bit depth %d (only 16)", bits)
			}
			if channels == 0 || sampleRate == 0 {
				return nil, Format{}, errors.New("audio: wav fmt chunk has zero channels or sample rate")
			}
			return data[body : body+size], Format{SampleRate: int(sampleRate), Channels: int(channels)}, nil
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, Format{}, errors.New("audio: wav file has no data chunk")
}
