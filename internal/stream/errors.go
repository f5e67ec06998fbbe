package stream

import "errors"

// ErrInvalidFilter is returned when a subscription filter names an unknown
// kind or an empty value.
var ErrInvalidFilter = errors.New("invalid subscription filter")
