package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Events are written in canonical CBOR; timestamps keep nanoseconds.
var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalEvent serializes an Event to CBOR bytes.
func MarshalEvent(ev Event) ([]byte, error) {
	return cborEncMode.Marshal(ev)
}

// UnmarshalEvent deserializes an Event from CBOR bytes.
func UnmarshalEvent(data []byte) (Event, error) {
	var ev Event
	if err := cbor.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("trace: unmarshal event: %w", err)
	}
	return ev, nil
}

// CBORWriter streams events as a sequence of CBOR data items.
type CBORWriter struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *cbor.Encoder
	closer io.Closer
	err    error
}

// NewCBORWriter writes events to w. If w is an io.Closer, Close closes it.
func NewCBORWriter(w io.Writer) *CBORWriter {
	buf := bufio.NewWriter(w)
	cw := &CBORWriter{buf: buf, enc: cborEncMode.NewEncoder(buf)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// CreateCBOR opens path for appending and returns a writer on it.
func CreateCBOR(path string) (*CBORWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	return NewCBORWriter(f), nil
}

// Record encodes ev. The first encoding error sticks and is reported by
// Close.
func (w *CBORWriter) Record(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.err = w.enc.Encode(ev)
}

// Flush writes buffered events to the underlying writer.
func (w *CBORWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	return w.buf.Flush()
}

// Close flushes and closes the writer.
func (w *CBORWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.err
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	w.err = errors.New("trace: writer closed")
	return err
}

// ReadCBOR decodes every event in r.
func ReadCBOR(r io.Reader) ([]Event, error) {
	dec := cbor.NewDecoder(bufio.NewReader(r))
	var events []Event
	for {
		var ev Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("trace: decode event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}

// ReadCBORFile decodes every event stored at path.
func ReadCBORFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCBOR(f)
}
