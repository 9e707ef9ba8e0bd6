package ctlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndDiscardDoNotPanic(t *testing.T) {
	l := New("debug")
	assert.NotPanics(t, func() { l.Info("hello", "k", "v") })

	d := Discard()
	assert.NotPanics(t, func() { d.Error("boom", "k", 1) })
}

func TestWithAttachesFields(t *testing.T) {
	l := Discard().With("component", "test")
	assert.NotPanics(t, func() { l.Warn("msg") })
}
