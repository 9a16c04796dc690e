package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// WriteWAV writes the buffer to path as a 16-bit mono PCM WAV file.
func WriteWAV(path string, buf Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := EncodeWAV(w, buf); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// EncodeWAV serializes the buffer as a 16-bit mono PCM WAV stream.
func EncodeWAV(w io.Writer, buf Buffer) error {
	if buf.SampleRate <= 0 {
		return errors.New("encode wav: sample rate must be positive")
	}

	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(buf.Samples) * 2)
	byteRate := uint32(buf.SampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36+dataSize)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVEfmt ")); err != nil {
		return err
	}
	fields := []any{
		uint32(16), // fmt chunk size
		uint16(1),  // PCM format tag
		uint16(numChannels),
		uint32(buf.SampleRate),
		byteRate,
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range fields {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	for _, s := range buf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if err := binary.Write(w, binary.LittleEndian, int16(s*32767)); err != nil {
			return err
		}
	}
	return nil
}
