// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import "fmt"

// EncodeValue serializes v into its general (non-compact) on-disk form and
// returns the type tag plus the encoded payload.  Compact containers are
// never emitted: the consuming database loads general-form records the same
// way, and the general forms keep the encoder small.
func EncodeValue(v Value) (byte, []byte, error) {
	return encodeValue(v, false)
}

func encodeValue(v Value, compress bool) (byte, []byte, error) {
	switch v.Kind {
	case KindString:
		payload, err := appendString(nil, v.Str, compress)
		if err != nil {
			return 0, nil, err
		}
		return tagString, payload, nil

	case KindList, KindSet:
		payload, err := appendLength(nil, uint64(len(v.Elems)))
		if err != nil {
			return 0, nil, err
		}
		for _, e := range v.Elems {
			if payload, err = appendString(payload, e, compress); err != nil {
				return 0, nil, err
			}
		}
		if v.Kind == KindSet {
			return tagSet, payload, nil
		}
		return tagList, payload, nil

	case KindHash:
		payload, err := appendLength(nil, uint64(len(v.Fields)))
		if err != nil {
			return 0, nil, err
		}
		for _, f := range v.Fields {
			if payload, err = appendString(payload, f.Name, compress); err != nil {
				return 0, nil, err
			}
			if payload, err = appendString(payload, f.Value, compress); err != nil {
				return 0, nil, err
			}
		}
		return tagHash, payload, nil

	case KindSortedSet:
		payload, err := appendLength(nil, uint64(len(v.Members)))
		if err != nil {
			return 0, nil, err
		}
		for _, m := range v.Members {
			if payload, err = appendString(payload, m.Member, compress); err != nil {
				return 0, nil, err
			}
			payload = appendDouble(payload, m.Score)
		}
		return tagSortedSet, payload, nil

	default:
		return 0, nil, fmt.Errorf("rdb: cannot encode value of kind %d", v.Kind)
	}
}
