package mapbatch

import "errors"

const Namespace = "mapbatch"

var (
	ErrInvalidConfig   = errors.New(Namespace + ": invalid configuration")
	ErrInvalidArgument = errors.New(Namespace + ": invalid argument")
	ErrInvalidState    = errors.New(Namespace + ": invalid iterator state")
	ErrIteratorClosed  = errors.New(Namespace + ": iterator closed")
	ErrFuncPanicked    = errors.New(Namespace + ": user function panicked")
)
