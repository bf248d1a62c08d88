package pool

import (
	"errors"
	"fmt"
)

var (
	ErrPoolClosed     = errors.New("connection pool is closed")
	ErrConnectTimeout = errors.New("connection acquire timed out")
	ErrConnReleased   = errors.New("connection already released to pool")
	ErrConfig         = errors.New("invalid pool configuration")
)

func configErrf(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(msg, args...))
}
