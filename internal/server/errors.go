package server

import "errors"

var (
	ErrMaxClientsReached = errors.New("maximum clients reached")
	ErrUnknownOp         = errors.New("unknown command op")
	ErrMissingField      = errors.New("missing command field")
	ErrUnknownPreset     = errors.New("unknown preset")
)
