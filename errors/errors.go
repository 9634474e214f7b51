package errors

import "fmt"

var (
	ErrInvalidIdentity = fmt.Errorf("invalid identity")
	ErrUnknownSession  = fmt.Errorf("unknown session")
	ErrTenantMismatch  = fmt.Errorf("room belongs to another establishment")
	ErrNotAMember      = fmt.Errorf("session is not a member of the room")
	ErrNotFound        = fmt.Errorf("not found")
	ErrPersistence     = fmt.Errorf("persistence failure")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
)
