// Package testutil holds small assertion helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"reflect"
	"testing"
)

// AssertEqual reports a test error when got and want differ. Both sides must
// have the same dynamic type, so pass typed constants where it matters.
func AssertEqual(t testing.TB, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func AssertTrue(t testing.TB, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Errorf("expected true: %s", msg)
	}
}

func AssertFalse(t testing.TB, cond bool, msg string) {
	t.Helper()
	if cond {
		t.Errorf("expected false: %s", msg)
	}
}

// MustUnmarshalJSON decodes data into v or stops the test.
func MustUnmarshalJSON(t testing.TB, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode JSON %q: %v", data, err)
	}
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
