package nodemap

import "errors"

// ErrInvalidContext is returned by Get and List when the supplied
// context is neither nil nor a value implementing Context.
var ErrInvalidContext = errors.New("nodemap: context does not support attribute lookup")
