package apperrors

import "errors"

var (
	ErrParamsNotSequence = errors.New("query parameters must be a plain sequence, not name-keyed")
	ErrParamsNotMapping  = errors.New("query parameters must be a name-keyed mapping")
	ErrParamCount        = errors.New("wrong number of query parameters")
	ErrMissingParam      = errors.New("query parameter not supplied")
	ErrUnsupportedQuery  = errors.New("unsupported query type")
	ErrInjectionDetected = errors.New("potential SQL injection detected")
)
