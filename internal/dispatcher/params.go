// Copyright 2025 James Ross
package dispatcher

import (
	"fmt"
	"slices"
	"sort"

	"github.com/coppersystems/pipelined/internal/node"
	"github.com/coppersystems/pipelined/internal/piper/param"
)

// validateParams checks bound params against spec before a node type's
// constructor ever sees them: every required (non-optional) key in spec
// must be present, every key in params must be declared in spec, and each
// value's Type must match its Spec. A nil spec means the type declares no
// parameters at all, so any params are unexpected.
func validateParams(spec map[string]param.Spec, params map[string]param.Value) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ps, ok := spec[key]
		if !ok {
			return &node.RunError{Kind: node.ErrUnexpectedParameter, Parameter: key}
		}
		if err := validateParamValue(key, ps, params[key]); err != nil {
			return err
		}
	}

	required := make([]string, 0, len(spec))
	for key, ps := range spec {
		if !ps.IsOptional {
			required = append(required, key)
		}
	}
	sort.Strings(required)

	for _, key := range required {
		if _, ok := params[key]; !ok {
			return &node.RunError{Kind: node.ErrMissingParameter, Parameter: key}
		}
	}
	return nil
}

func validateParamValue(key string, ps param.Spec, v param.Value) error {
	if v.Type() != ps.Type {
		return &node.RunError{Kind: node.ErrBadParameterType, Parameter: key}
	}

	switch ps.Type {
	case param.TypeEnum:
		s, _ := v.AsString()
		if len(ps.Variants) > 0 && !slices.Contains(ps.Variants, s) {
			return &node.RunError{Kind: node.ErrBadParameterOther, Parameter: key, Message: fmt.Sprintf("value %q is not one of %v", s, ps.Variants)}
		}
	case param.TypeList:
		if ps.ItemType == nil {
			return nil
		}
		items, _ := v.AsList()
		for _, item := range items {
			if err := validateParamValue(key, *ps.ItemType, item); err != nil {
				return err
			}
		}
	case param.TypeMap:
		if ps.ValueType == nil {
			return nil
		}
		m, _ := v.AsMap()
		for _, item := range m {
			if err := validateParamValue(key, *ps.ValueType, item); err != nil {
				return err
			}
		}
	}
	return nil
}
