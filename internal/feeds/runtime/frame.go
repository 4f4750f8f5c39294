package runtime

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Docker's multiplexed log stream (no-TTY container) prefixes every chunk
// with an 8-byte header: [stream_type, 0, 0, 0, size_be_u32], followed by
// exactly size bytes of payload. stream_type 1 is stdout, 2 is stderr.
const frameHeaderLen = 8

const (
	streamTypeStdout = 1
	streamTypeStderr = 2
)

// demux reads r until EOF (or ctx cancellation via the caller's
// context-aware reader), splitting each frame's payload into newline
// lines and handing them to emit(stream, line).
func demux(r io.Reader, emit func(stream string, line string)) error {
	br := bufio.NewReaderSize(r, 32*1024)
	header := make([]byte, frameHeaderLen)

	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		var stream string
		switch header[0] {
		case streamTypeStdout:
			stream = "stdout"
		case streamTypeStderr:
			stream = "stderr"
		default:
			stream = "stdout"
		}

		size := binary.BigEndian.Uint32(header[4:8])
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		for _, line := range splitLines(payload) {
			if line != "" {
				emit(stream, line)
			}
		}
	}
}

// splitLines splits a frame payload on '\n', dropping a trailing empty
// segment produced by a payload that already ends in a newline.
func splitLines(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}
	text := string(payload)
	var lines []string
	start := 0
	for i, b := range text {
		if b == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
