/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package maphelpers contains helpers for generic JSON object trees.
package maphelpers

// CopyMap performs a deep copy of map, nested maps and nested slices.
// Scalar values are shared since they are immutable.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	cm := make(map[string]interface{}, len(m))

	for k, v := range m {
		cm[k] = copyValue(v)
	}

	return cm
}

// CopySlice performs a deep copy of slice and its nested containers.
func CopySlice(s []interface{}) []interface{} {
	cs := make([]interface{}, len(s))

	for i, v := range s {
		cs[i] = copyValue(v)
	}

	return cs
}

func copyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		return CopyMap(tv)
	case []interface{}:
		return CopySlice(tv)
	default:
		return v
	}
}
