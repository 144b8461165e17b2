package common

import (
	"path"
	"reflect"
	"runtime"
)

// FuncName returns the package-qualified name of a function,
// eg. "rgeo.Countries10" for github.com/sams96/rgeo.Countries10.
func FuncName(fn any) string {
	return path.Base(runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name())
}
