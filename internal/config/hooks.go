package config

import (
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/meridian-automation/engine/internal/control"
	"github.com/meridian-automation/engine/internal/easing"
	"github.com/meridian-automation/engine/internal/timeparse"
)

// decodeHooks composes the engine's custom decode conversions: time strings
// into millisecond durations, and named enums (operation, curve, timer
// type) into their typed values - mapstructure only performs these once
// told, same as koanf's own decoder is told about the "koanf" tag.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		millisHook,
		operationHook,
		curveHook,
		timerTypeHook,
	)
}

var (
	millisType    = reflect.TypeOf(timeparse.Millis(0))
	operationType = reflect.TypeOf(control.Operation(0))
	curveType     = reflect.TypeOf(easing.Curve(0))
	timerTypeType = reflect.TypeOf(control.TimerType(0))
)

func millisHook(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != millisType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	ms, err := timeparse.Parse(s)
	if err != nil {
		return nil, err
	}
	return timeparse.Millis(ms), nil
}

func operationHook(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != operationType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return control.ParseOperation(s)
}

func curveHook(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != curveType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return easing.ParseCurve(s)
}

func timerTypeHook(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t != timerTypeType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return control.ParseTimerType(s)
}
