// Package audio holds the recorded audio payload attached to a turn.
package audio

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

// DefaultMIMEType is used when a recording does not carry a type.
const DefaultMIMEType = "audio/webm"

// Clip is raw recorded audio. It is never persisted.
type Clip struct {
	MIMEType string
	Data     []byte
}

// Type returns the clip MIME type, falling back to DefaultMIMEType.
func (c *Clip) Type() string {
	if c == nil || c.MIMEType == "" {
		return DefaultMIMEType
	}
	return c.MIMEType
}

// Empty reports whether the clip carries no audio.
func (c *Clip) Empty() bool {
	return c == nil || len(c.Data) == 0
}

// ReadFile loads a clip from disk, guessing the MIME type from the extension.
func ReadFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("audio file %s is empty", path)
	}

	return &Clip{
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}
