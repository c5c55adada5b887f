package interview

import (
	"bytes"
	"errors"
	"sync"
)

// MaxAudioBytes bounds one capture; inline audio above this is rejected by the AI service.
const MaxAudioBytes = 20 << 20

var (
	ErrNotRecording      = errors.New("no recording in progress")
	ErrRecordingTooLarge = errors.New("recording exceeds the maximum size")
)

// Recorder buffers one audio capture at a time.
type Recorder struct {
	mu     sync.Mutex
	active bool
	mime   string
	buf    *bytes.Buffer
}

// Start opens a capture. It returns false, and changes nothing, when one is already open.
func (r *Recorder) Start(mimeType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return false
	}
	r.active = true
	r.mime = mimeType
	r.buf = new(bytes.Buffer)
	return true
}

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0, ErrNotRecording
	}
	if r.buf.Len()+len(p) > MaxAudioBytes {
		return 0, ErrRecordingTooLarge
	}
	return r.buf.Write(p)
}

// Stop closes the capture and hands over its audio; the recorder keeps no reference to it.
// ok is false when nothing was recording.
func (r *Recorder) Stop() (audio []byte, mimeType string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, "", false
	}
	audio, mimeType = r.buf.Bytes(), r.mime
	r.active = false
	r.buf = nil
	r.mime = ""
	return audio, mimeType, true
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Recorder) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil {
		return 0
	}
	return r.buf.Len()
}
