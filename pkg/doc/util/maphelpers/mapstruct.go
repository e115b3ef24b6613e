/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maphelpers

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/mitchellh/mapstructure"
)

//nolint:gochecknoglobals
var (
	numericDateType = reflect.TypeOf(jwt.NumericDate(0))
	audienceType    = reflect.TypeOf(jwt.Audience{})
)

// JSONNumberToJwtNumericDate hook for mapstructure library to decode json.Number (or float64) to jwt.NumericDate.
func JSONNumberToJwtNumericDate() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != numericDateType && t != reflect.PtrTo(numericDateType) {
			return data, nil
		}

		var seconds float64

		switch {
		case f.String() == "json.Number":
			parsed, err := strconv.ParseFloat(fmt.Sprint(data), 64)
			if err != nil {
				return nil, err
			}

			seconds = parsed
		case f.Kind() == reflect.Float64:
			seconds = reflect.ValueOf(data).Float()
		case f.Kind() == reflect.Int || f.Kind() == reflect.Int64:
			seconds = float64(reflect.ValueOf(data).Int())
		default:
			return data, nil
		}

		// mapstructure allocates the pointer itself, a plain value serves both targets.
		return *jwt.NewNumericDate(time.Unix(int64(seconds), 0)), nil
	}
}

// StringToJwtAudience hook for mapstructure library to decode a single string audience to jwt.Audience.
func StringToJwtAudience() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != audienceType || f.Kind() != reflect.String {
			return data, nil
		}

		return jwt.Audience{reflect.ValueOf(data).String()}, nil
	}
}

// DecodeJSONMap decodes a JSON object tree into out using the "json" struct tags of out.
func DecodeJSONMap(in map[string]interface{}, out interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(JSONNumberToJwtNumericDate(), StringToJwtAudience()),
		Result:     out,
		TagName:    "json",
		Squash:     true,
	})
	if err != nil {
		return fmt.Errorf("mapstruct decoder: %w", err)
	}

	return d.Decode(in)
}
