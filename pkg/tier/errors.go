package tier

import "errors"

var (
	ErrUnknownTier       = errors.New("unknown subscription tier")
	ErrInvalidProductMap = errors.New("invalid product tier mapping")
	ErrEmptyGroupID      = errors.New("group id is required")
	ErrStoreClosed       = errors.New("tier store is closed")
)
