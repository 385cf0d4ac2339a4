package availability

import "errors"

// ErrNoSources is returned when no enabled adapter covers the query.
var ErrNoSources = errors.New("no enabled adapter covers this country and visa type")
