package main

import (
	"errors"
	"testing"
)

func TestExitCodeOfClassifiesTaggedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config error", configErr(errors.New("bad flag")), 1},
		{"io error", ioErr(errors.New("index open failed")), 2},
		{"unclassified error", errors.New("something else"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeOf(tt.err); got != tt.want {
				t.Errorf("exitCodeOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfigErrAndIoErrNilPassThrough(t *testing.T) {
	if err := configErr(nil); err != nil {
		t.Errorf("configErr(nil) = %v, want nil", err)
	}
	if err := ioErr(nil); err != nil {
		t.Errorf("ioErr(nil) = %v, want nil", err)
	}
}

func TestCliErrorUnwraps(t *testing.T) {
	inner := errors.New("root cause")
	wrapped := ioErr(inner)
	if !errors.Is(wrapped, inner) {
		t.Errorf("expected wrapped error to unwrap to %v", inner)
	}
}
