// Package permissions checks OS-level capture authorization.
package permissions

import "errors"

// ErrMicrophoneDenied is returned when the process may not capture audio
var ErrMicrophoneDenied = errors.New("microphone permission not granted")
