package player

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	bytesPerFrame          = 4 // 16-bit little-endian stereo
	sampleConversionFactor = 32768.0
)

// pcmStreamer adapts a 16-bit stereo PCM reader, such as an mp3.Decoder,
// to the beep.Streamer interface.
type pcmStreamer struct {
	r   io.Reader
	buf []byte
	err error
	eof bool
}

func newPCMStreamer(r io.Reader) *pcmStreamer {
	return &pcmStreamer{r: r}
}

// Stream fills samples with decoded frames in [-1, 1].
func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.eof || s.err != nil {
		return 0, false
	}

	need := len(samples) * bytesPerFrame
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	read, err := io.ReadFull(s.r, buf)
	frames := read / bytesPerFrame
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(buf[i*bytesPerFrame:]))
		right := int16(binary.LittleEndian.Uint16(buf[i*bytesPerFrame+2:]))
		samples[i][0] = float64(left) / sampleConversionFactor
		samples[i][1] = float64(right) / sampleConversionFactor
	}

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.eof = true
		} else {
			s.err = err
		}
		return frames, frames > 0
	}
	return frames, true
}

// Err returns the last read error other than end of stream.
func (s *pcmStreamer) Err() error {
	return s.err
}
