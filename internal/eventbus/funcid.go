package eventbus

import "reflect"

// sameFunc reports whether two Listener values wrap the same underlying
// function, used by Off to locate a previously registered listener.
func sameFunc(a, b Listener) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
