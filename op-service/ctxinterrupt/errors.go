package ctxinterrupt

import "errors"

var ErrInterrupted = errors.New("interrupted")
