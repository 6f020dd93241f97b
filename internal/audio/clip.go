package audio

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultContentType is the media type produced by the speech relay
const DefaultContentType = "audio/mpeg"

// Clip is synthesized audio for one text. A clip is never mutated after
// creation and can back any number of resources.
type Clip struct {
	Text        string
	ContentType string
	CreatedAt   time.Time
	data        []byte
}

// NewClip copies data into a new immutable clip
func NewClip(text string, data []byte, contentType string) *Clip {
	if contentType == "" {
		contentType = DefaultContentType
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Clip{
		Text:        text,
		ContentType: contentType,
		CreatedAt:   time.Now(),
		data:        buf,
	}
}

// Size returns the number of audio bytes
func (c *Clip) Size() int {
	return len(c.data)
}

// Bytes returns a copy of the audio bytes
func (c *Clip) Bytes() []byte {
	buf := make([]byte, len(c.data))
	copy(buf, c.data)
	return buf
}

// NewResource builds a fresh playable handle positioned at the start of the clip
func (c *Clip) NewResource() *Resource {
	return &Resource{
		ID:     uuid.New().String(),
		Text:   c.Text,
		clip:   c,
		reader: bytes.NewReader(c.data),
	}
}

// Resource is a playable handle for a clip. It is owned by whoever is playing
// it and must be released when playback ends.
type Resource struct {
	ID   string
	Text string

	mu       sync.Mutex
	clip     *Clip
	reader   *bytes.Reader
	released bool
}

// Clip returns the backing clip, or nil once released
func (r *Resource) Clip() *Clip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clip
}

// ContentType returns the media type of the backing clip
func (r *Resource) ContentType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return DefaultContentType
	}
	return r.clip.ContentType
}

// Read reads audio from the current position
func (r *Resource) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0, io.EOF
	}
	return r.reader.Read(p)
}

// Seek implements io.Seeker so decoders can rewind
func (r *Resource) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0, io.EOF
	}
	return r.reader.Seek(offset, whence)
}

// Close makes Resource an io.ReadCloser; it does not release the handle
func (r *Resource) Close() error {
	return nil
}

// Position returns the current read offset
func (r *Resource) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0
	}
	return r.reader.Size() - int64(r.reader.Len())
}

// Rewind resets the position to the start
func (r *Resource) Rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader != nil {
		r.reader.Reset(r.clip.data)
	}
}

// Release drops the reference to the clip. Safe to call more than once.
func (r *Resource) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	r.reader = nil
	r.clip = nil
}

// Released reports whether Release has been called
func (r *Resource) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}
