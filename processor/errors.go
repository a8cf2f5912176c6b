package processor

import "errors"

var (
	ErrNilLogSink                    = errors.New("log sink must not be nil")
	ErrNegativeHeartbeatInterval     = errors.New("heartbeat interval must not be negative")
	ErrNegativeInitialHeartbeatDelay = errors.New("initial heartbeat delay must not be negative")
	ErrNegativePromotionTick         = errors.New("promotion tick must not be negative")
)
