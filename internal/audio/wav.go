package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// WAV format constants.
const (
	wavHeaderSize   = 36
	wavFmtChunkSize = 16
	pcmFormatCode   = 1
	pcmBitDepth     = 16
	pcmBytesPerSamp = 2
	pcmMaxAmplitude = 32767
)

// File permissions for written audio files.
const wavFilePermissions = 0o600

// Static errors.
var (
	ErrInvalidWAV     = errors.New("invalid WAV data")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
	ErrEmptyWaveform  = errors.New("waveform has no frames")
)

// EncodeWAV serializes the waveform as a 16-bit PCM RIFF/WAVE stream.
// Samples outside [-1.0, 1.0] are clamped.
func EncodeWAV(w *Waveform) ([]byte, error) {
	validateErr := w.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	if w.Frames() == 0 {
		return nil, ErrEmptyWaveform
	}

	channels := w.Channels()
	frames := w.Frames()
	dataSize := uint32(frames * channels * pcmBytesPerSamp)
	byteRate := uint32(w.SampleRate * channels * pcmBytesPerSamp)
	blockAlign := uint16(channels * pcmBytesPerSamp)

	var buf bytes.Buffer

	buf.WriteString("RIFF")
	writeLE(&buf, wavHeaderSize+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeLE(&buf, uint32(wavFmtChunkSize))
	writeLE(&buf, uint16(pcmFormatCode))
	writeLE(&buf, uint16(channels))
	writeLE(&buf, uint32(w.SampleRate))
	writeLE(&buf, byteRate)
	writeLE(&buf, blockAlign)
	writeLE(&buf, uint16(pcmBitDepth))

	buf.WriteString("data")
	writeLE(&buf, dataSize)

	for frame := range frames {
		for channel := range channels {
			writeLE(&buf, floatToPCM16(w.Samples[channel][frame]))
		}
	}

	return buf.Bytes(), nil
}

// WriteWAVFile encodes the waveform and writes it to path.
func WriteWAVFile(path string, w *Waveform) error {
	data, err := EncodeWAV(w)
	if err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}

	writeErr := os.WriteFile(path, data, wavFilePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write WAV file '%s': %w", path, writeErr)
	}

	return nil
}

// DecodeWAV parses a 16-bit PCM RIFF/WAVE stream into a waveform.
func DecodeWAV(r io.Reader) (*Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}

	header, payload, err := splitWAVChunks(data)
	if err != nil {
		return nil, err
	}

	if header.formatCode != pcmFormatCode || header.bitDepth != pcmBitDepth {
		return nil, fmt.Errorf(
			"%w: format %d, %d-bit (only %d-bit PCM is supported)",
			ErrUnsupportedWAV, header.formatCode, header.bitDepth, pcmBitDepth,
		)
	}

	channels := int(header.channels)
	frames := len(payload) / (channels * pcmBytesPerSamp)
	wave := NewWaveform(channels, frames, int(header.sampleRate))

	for frame := range frames {
		for channel := range channels {
			offset := (frame*channels + channel) * pcmBytesPerSamp
			sample := int16(binary.LittleEndian.Uint16(payload[offset:]))
			wave.Samples[channel][frame] = float32(sample) / float32(pcmMaxAmplitude+1)
		}
	}

	return wave, nil
}

// ReadWAVFile reads and decodes a WAV file.
func ReadWAVFile(path string) (*Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file '%s': %w", path, err)
	}

	wave, decodeErr := DecodeWAV(file)
	closeErr := file.Close()

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode WAV file '%s': %w", path, decodeErr)
	}

	if closeErr != nil {
		return wave, fmt.Errorf("failed to close WAV file '%s': %w", path, closeErr)
	}

	return wave, nil
}

type wavHeader struct {
	formatCode uint16
	channels   uint16
	sampleRate uint32
	bitDepth   uint16
}

// splitWAVChunks walks the RIFF chunk list and returns the parsed fmt chunk
// and the raw data payload.
func splitWAVChunks(data []byte) (*wavHeader, []byte, error) {
	const riffPreamble = 12

	if len(data) < riffPreamble ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("%w: missing RIFF/WAVE preamble", ErrInvalidWAV)
	}

	var (
		header  *wavHeader
		payload []byte
	)

	offset := riffPreamble
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := data[offset+8:]

		if chunkSize > len(body) {
			chunkSize = len(body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < wavFmtChunkSize {
				return nil, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}

			header = &wavHeader{
				formatCode: binary.LittleEndian.Uint16(body[0:2]),
				channels:   binary.LittleEndian.Uint16(body[2:4]),
				sampleRate: binary.LittleEndian.Uint32(body[4:8]),
				bitDepth:   binary.LittleEndian.Uint16(body[14:16]),
			}
		case "data":
			payload = body[:chunkSize]
		}

		// Chunks are word aligned.
		offset += 8 + chunkSize + (chunkSize % 2)
	}

	if header == nil || header.channels == 0 {
		return nil, nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}

	if payload == nil {
		return nil, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}

	return header, payload, nil
}

func floatToPCM16(sample float32) int16 {
	clamped := math.Max(-1.0, math.Min(1.0, float64(sample)))

	return int16(clamped * pcmMaxAmplitude)
}

// writeLE writes a fixed-size little-endian value to an in-memory buffer.
func writeLE(buf *bytes.Buffer, value any) {
	// bytes.Buffer writes cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, value)
}
