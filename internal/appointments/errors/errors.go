package errors

import (
	"errors"

	"clinic/internal/slots"
)

var (
	ErrSlotTaken = errors.New("slot already reserved")

	ErrSlotOutOfWindow = slots.ErrOutOfWindow

	ErrUnknownTime = slots.ErrUnknownTime

	ErrStreamClosed = errors.New("reservation stream closed")

	ErrStreamLagged = errors.New("reservation stream fell behind")
)
