package variable

import "errors"

// ErrInvalidIdentifier is the sentinel behind every malformed-Name error,
// matching it to the "invalid-identifier" kind of the error taxonomy.
var ErrInvalidIdentifier = errors.New("invalid identifier")
