package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always yields 16-bit little-endian stereo PCM.
const mp3DecodedChannels = 2

// DecodeMP3 decodes an MP3 stream into a waveform.
func DecodeMP3(r io.Reader) (*Waveform, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	frames := len(pcm) / (mp3DecodedChannels * pcmBytesPerSamp)
	wave := NewWaveform(mp3DecodedChannels, frames, decoder.SampleRate())

	for frame := range frames {
		for channel := range mp3DecodedChannels {
			offset := (frame*mp3DecodedChannels + channel) * pcmBytesPerSamp
			sample := int16(binary.LittleEndian.Uint16(pcm[offset:]))
			wave.Samples[channel][frame] = float32(sample) / float32(pcmMaxAmplitude+1)
		}
	}

	return wave, nil
}

// ReadFile loads an audio file as a waveform, dispatching on the file
// extension. MP3 input is decoded with go-mp3; everything else is treated
// as WAV.
func ReadFile(path string) (*Waveform, error) {
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open mp3 file '%s': %w", path, err)
		}

		wave, decodeErr := DecodeMP3(file)
		closeErr := file.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode mp3 file '%s': %w", path, decodeErr)
		}

		if closeErr != nil {
			return wave, fmt.Errorf("failed to close mp3 file '%s': %w", path, closeErr)
		}

		return wave, nil
	}

	return ReadWAVFile(path)
}
