package ai

import (
	"context"

	"github.com/papercomputeco/grove/pkg/audio"
)

// Unavailable is a Service whose every call fails with Err. It stands in when
// no backend could be configured so the rest of the tree stays editable.
type Unavailable struct {
	Err error
}

var _ Service = Unavailable{}

func (u Unavailable) Transcribe(context.Context, *audio.Clip) (string, error) {
	return "", u.Err
}

func (u Unavailable) Summarize(context.Context, string) (string, error) {
	return "", u.Err
}

func (u Unavailable) Reason(context.Context, []Message, *audio.Clip) (string, error) {
	return "", u.Err
}
