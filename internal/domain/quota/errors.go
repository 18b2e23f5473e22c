package quota

import "errors"

// ErrQuotaExceeded indicates the identity used up its daily request quota.
var ErrQuotaExceeded = errors.New("daily request quota exceeded")
