package main

import (
	"errors"
	"testing"
)

func TestShutdownDisplayClosesSink(t *testing.T) {
	fd := &fakeDisplay{}
	shutdownDisplay(fd, testLogger())
	if fd.closes != 1 {
		t.Fatalf("closes = %d, want 1", fd.closes)
	}
}

func TestShutdownDisplayToleratesCloseError(t *testing.T) {
	fd := &fakeDisplay{closeErr: errors.New("device busy")}
	shutdownDisplay(fd, testLogger())
	if fd.closes != 1 {
		t.Fatalf("closes = %d, want 1", fd.closes)
	}
}
