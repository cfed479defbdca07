package hart

import "errors"

var errOutOfBounds = errors.New("hart: memory access out of bounds")
