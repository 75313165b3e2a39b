package reconciler

import "errors"

var (
	ErrInvalidEvent           = errors.New("invalid lifecycle event")
	ErrUnknownEventType       = errors.New("unknown lifecycle event type")
	ErrEventAlreadyProcessed  = errors.New("lifecycle event already processed")
	ErrPackageAlreadyRecorded = errors.New("package purchase already recorded")
	ErrFailedToApplyEvent     = errors.New("failed to apply lifecycle event")
)
