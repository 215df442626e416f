// Package audio holds the raw-PCM helpers shared by the transcription
// pipeline and the STT provider adapters: encoding int16 capture samples
// into the little-endian byte wire format providers expect, and wrapping
// that wire format in a minimal WAV container for the upload-based
// providers (OpenAI/Groq Whisper) that need a file rather than a raw
// stream.
package audio

import (
	"bytes"
	"encoding/binary"
)

// PCM16ToBytes encodes int16 capture samples as little-endian PCM bytes,
// the wire format stt.Provider implementations expect.
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// NewWavBuffer wraps 16-bit mono PCM bytes in a minimal WAV container, for
// providers that require a file upload rather than a raw byte stream.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
