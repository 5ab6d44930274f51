package eventstream

import "errors"

// ErrNilSavedEvent indicates a nil conversation saved payload was provided to a publisher.
var ErrNilSavedEvent = errors.New("nil conversation saved event")
