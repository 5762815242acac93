package cast

import "errors"

// ErrTruncated reports a cast-level payload too short for its fixed header.
var ErrTruncated = errors.New("truncated cast payload")
