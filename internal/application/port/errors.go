package port

import "errors"

// ErrNotFound is returned by repositories when the addressed entity does not exist
var ErrNotFound = errors.New("not found")
