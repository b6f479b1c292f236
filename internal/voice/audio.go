// Package voice relays full-duplex audio between the widget's browser leg
// and a remote conversational agent. The browser captures 16kHz float32
// frames; the agent answers with base64 16-bit PCM at 24kHz, which is
// scheduled for gapless playback.
package voice

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

// Float32ToPCM16 converts float32 samples to little-endian 16-bit PCM,
// clipping at the +-1.0 nominal range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodeFloat32Frame interprets a capture frame as little-endian float32
// samples.
func DecodeFloat32Frame(frame []byte) ([]float32, error) {
	if len(frame)%4 != 0 {
		return nil, fmt.Errorf("capture frame length %d is not a multiple of 4", len(frame))
	}
	samples := make([]float32, len(frame)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(frame[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// Float32FrameBytes encodes samples as a little-endian float32 frame, the
// inverse of DecodeFloat32Frame.
func Float32FrameBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// EncodePCM16 base64-encodes PCM bytes for the agent wire format.
func EncodePCM16(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodePCM16 decodes a base64 agent chunk back to PCM bytes.
func DecodePCM16(data string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio chunk: %w", err)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm chunk length %d is not a multiple of 2", len(pcm))
	}
	return pcm, nil
}

// PCM16Duration returns the playback duration of mono 16-bit PCM at the
// given sample rate.
func PCM16Duration(pcm []byte, sampleRate int) time.Duration {
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
