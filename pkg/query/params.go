package query

import (
	"fmt"
	"reflect"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/apperrors"
)

// sequenceOf returns params as positional values. present is false for nil
// params, including a nil slice. Maps, strings, byte slices and scalars are
// rejected: a positional query has no way to bind a name.
func sequenceOf(params any) (values []any, present bool, err error) {
	switch p := params.(type) {
	case nil:
		return nil, false, nil
	case []any:
		if p == nil {
			return nil, false, nil
		}
		return p, true, nil
	case string, []byte:
		return nil, false, fmt.Errorf("%w: got %T", apperrors.ErrParamsNotSequence, params)
	}

	rv := reflect.ValueOf(params)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, false, nil
		}
	case reflect.Array:
	default:
		return nil, false, fmt.Errorf("%w: got %T", apperrors.ErrParamsNotSequence, params)
	}

	values = make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true, nil
}

// mappingOf returns params as named values. Any map with string keys is
// accepted, pgx.NamedArgs included.
func mappingOf(params any) (named map[string]any, present bool, err error) {
	switch p := params.(type) {
	case nil:
		return nil, false, nil
	case map[string]any:
		if p == nil {
			return nil, false, nil
		}
		return p, true, nil
	}

	rv := reflect.ValueOf(params)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false, fmt.Errorf("%w: got %T", apperrors.ErrParamsNotMapping, params)
	}
	if rv.IsNil() {
		return nil, false, nil
	}

	named = make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		named[iter.Key().String()] = iter.Value().Interface()
	}
	return named, true, nil
}
