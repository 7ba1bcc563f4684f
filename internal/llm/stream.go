package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/simonyos/zchat/internal/config"
)

const readBufferSize = 4096

// lineState is the state of a lineReader.
type lineState int

const (
	awaitingBytes lineState = iota // no complete line buffered
	haveLine                       // at least one complete line queued
	done                           // body exhausted or terminated, nothing queued
	errored                        // read failed or context cancelled
)

// lineReader turns a response body into decoded text lines. It performs at
// most one Read per call to next and buffers only the current partial line
// plus an incomplete trailing UTF-8 sequence, so a slow consumer slows the
// transport.
type lineReader struct {
	ctx  context.Context
	body io.ReadCloser
	buf  []byte

	state   lineState
	err     error
	eof     bool
	pending []byte          // bytes of a rune split across reads
	partial strings.Builder // text after the last newline
	lines   []string

	closeOnce sync.Once
	closeErr  error
}

func newLineReader(ctx context.Context, body io.ReadCloser) *lineReader {
	return &lineReader{
		ctx:  ctx,
		body: body,
		buf:  make([]byte, readBufferSize),
	}
}

// next returns the next complete line without its line terminator. It
// returns io.EOF once the body is exhausted. A trailing line without a
// newline is returned before io.EOF.
func (r *lineReader) next() (string, error) {
	for {
		if r.state != done && r.state != errored {
			if err := r.ctx.Err(); err != nil {
				r.fail(err)
			}
		}

		switch r.state {
		case haveLine:
			line := r.lines[0]
			r.lines = r.lines[1:]
			if len(r.lines) == 0 {
				if r.eof {
					r.finish()
				} else {
					r.state = awaitingBytes
				}
			}
			return line, nil
		case done:
			return "", io.EOF
		case errored:
			return "", r.err
		case awaitingBytes:
			r.fill()
		}
	}
}

// fill performs one read and advances the state.
func (r *lineReader) fill() {
	n, err := r.body.Read(r.buf)
	if n > 0 {
		r.decode(r.buf[:n])
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.eof = true
		// Bytes still pending at EOF can never complete; keep them as-is.
		if len(r.pending) > 0 {
			r.partial.Write(r.pending)
			r.pending = nil
		}
		if r.partial.Len() > 0 {
			r.lines = append(r.lines, trimCR(r.partial.String()))
			r.partial.Reset()
		}
	default:
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		r.fail(err)
		return
	}

	switch {
	case len(r.lines) > 0:
		r.state = haveLine
	case r.eof:
		r.finish()
	}
}

// decode appends p to the text buffer, holding back an incomplete rune at
// the end, and queues every line completed by it.
func (r *lineReader) decode(p []byte) {
	data := p
	if len(r.pending) > 0 {
		data = append(r.pending, p...)
		r.pending = nil
	}

	cut := len(data) - incompleteTail(data)
	if cut < len(data) {
		r.pending = append([]byte(nil), data[cut:]...)
	}
	text := string(data[:cut])

	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			r.partial.WriteString(text)
			return
		}
		r.partial.WriteString(text[:i])
		r.lines = append(r.lines, trimCR(r.partial.String()))
		r.partial.Reset()
		text = text[i+1:]
	}
}

// incompleteTail returns the length of a UTF-8 sequence at the end of p that
// has started but not finished, or 0.
func incompleteTail(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return 0
		}
		return len(p) - i
	}
	return 0
}

func trimCR(s string) string {
	return strings.TrimSuffix(s, "\r")
}

// finish marks the reader done and releases the body.
func (r *lineReader) finish() {
	r.state = done
	r.lines = nil
	r.close()
}

// fail releases the body before recording err.
func (r *lineReader) fail(err error) {
	r.close()
	r.state = errored
	r.err = err
	r.lines = nil
}

func (r *lineReader) close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

// errEndOfStream is returned by a frame parser for an explicit terminator.
var errEndOfStream = errors.New("end of stream")

// malformedFrameError marks a line that could not be parsed. It is logged
// and skipped.
type malformedFrameError struct {
	err error
}

func (e *malformedFrameError) Error() string { return "malformed frame: " + e.err.Error() }
func (e *malformedFrameError) Unwrap() error { return e.err }

// frameParser parses one line. ok is false for lines that carry no frame.
// It returns errEndOfStream for a terminator line, a *malformedFrameError
// for garbage, and any other error to abort the stream.
type frameParser[F any] func(line string) (frame F, ok bool, err error)

// frameStream yields one protocol frame per line.
type frameStream[F any] struct {
	provider config.ProviderID
	lines    *lineReader
	parse    frameParser[F]
}

func newFrameStream[F any](ctx context.Context, provider config.ProviderID, body io.ReadCloser, parse frameParser[F]) *frameStream[F] {
	return &frameStream[F]{
		provider: provider,
		lines:    newLineReader(ctx, body),
		parse:    parse,
	}
}

func (s *frameStream[F]) next() (F, error) {
	var zero F
	for {
		line, err := s.lines.next()
		if err != nil {
			return zero, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		frame, ok, err := s.parse(line)
		var malformed *malformedFrameError
		switch {
		case errors.Is(err, errEndOfStream):
			s.lines.finish()
			return zero, io.EOF
		case errors.As(err, &malformed):
			slog.Warn("skipping malformed stream frame",
				"provider", s.provider,
				"error", malformed.err,
				"line", truncate(line, 200))
			continue
		case err != nil:
			s.lines.fail(err)
			return zero, err
		case !ok:
			continue
		}
		return frame, nil
	}
}

func (s *frameStream[F]) close() error {
	return s.lines.close()
}

// chunkStream maps frames to chunks. convert returns false for frames that
// are consumed without producing a chunk.
type chunkStream[F any] struct {
	frames  *frameStream[F]
	convert func(F) (Chunk, bool)
}

func (s *chunkStream[F]) Recv() (Chunk, error) {
	for {
		frame, err := s.frames.next()
		if err != nil {
			return Chunk{}, err
		}
		if chunk, ok := s.convert(frame); ok {
			return chunk, nil
		}
	}
}

func (s *chunkStream[F]) Close() error {
	return s.frames.close()
}

// terminatedStream guarantees that the last chunk has Done set and that
// nothing follows it. A stream that ends without a terminal chunk gets a
// synthesized one.
type terminatedStream struct {
	inner    Stream
	provider config.ProviderID
	model    string
	finished bool
	err      error
}

func (s *terminatedStream) Recv() (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}
	if s.finished {
		return Chunk{}, io.EOF
	}

	chunk, err := s.inner.Recv()
	if errors.Is(err, io.EOF) {
		s.finished = true
		s.inner.Close()
		return Chunk{Done: true, Model: s.model, Provider: s.provider}, nil
	}
	if err != nil {
		s.err = err
		return Chunk{}, err
	}

	if chunk.Provider == "" {
		chunk.Provider = s.provider
	}
	if chunk.Model == "" {
		chunk.Model = s.model
	}
	if chunk.Done {
		s.finished = true
		s.inner.Close()
	}
	return chunk, nil
}

func (s *terminatedStream) Close() error {
	return s.inner.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Collect drains a stream and returns the concatenated content. The stream
// is closed on return.
func Collect(stream Stream) (string, error) {
	defer stream.Close()
	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk.Content)
		if chunk.Done {
			return sb.String(), nil
		}
	}
}
