package relay

import (
	"bytes"
	"io"

	"github.com/a-h/alex/models"
)

// emptyID3Tag is an ID3v2.4 header for a tag with no frames. MP3 decoders
// skip it, and it gives clients a marker to find the start of the audio.
var emptyID3Tag = []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}

// audioWriter makes sure the audio segment starts with the audio marker.
type audioWriter struct {
	w       io.Writer
	head    []byte
	started bool
	n       int64
}

func (a *audioWriter) Write(p []byte) (n int, err error) {
	if a.started {
		n, err = a.w.Write(p)
		a.n += int64(n)
		return n, err
	}
	a.head = append(a.head, p...)
	if len(a.head) < len(models.AudioMarker) && bytes.HasPrefix(models.AudioMarker, a.head) {
		return len(p), nil
	}
	if err = a.start(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *audioWriter) start() (err error) {
	a.started = true
	if !bytes.HasPrefix(a.head, models.AudioMarker) {
		if err = a.write(emptyID3Tag); err != nil {
			return err
		}
	}
	err = a.write(a.head)
	a.head = nil
	return err
}

func (a *audioWriter) write(p []byte) error {
	n, err := a.w.Write(p)
	a.n += int64(n)
	return err
}

// Close writes any audio held back while looking for the marker.
func (a *audioWriter) Close() error {
	if a.started || len(a.head) == 0 {
		return nil
	}
	return a.start()
}
