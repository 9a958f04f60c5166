package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	// Test setting a custom logger
	called := false
	customLogger := func(format string, v ...interface{}) {
		called = true
	}

	SetLogger(customLogger)
	Logf("test message")

	if !called {
		t.Error("Custom logger was not called")
	}

	// Test setting nil logger (should create no-op)
	SetLogger(nil)
	// This should not panic
	Logf("test message")

	// Verify the logger is a no-op by checking it doesn't panic
	// and doesn't call anything
	noOpCalled := false
	testLogger := func(format string, v ...interface{}) {
		noOpCalled = true
	}
	SetLogger(testLogger)
	// First verify our test logger works
	Logf("test")
	if !noOpCalled {
		t.Error("Test logger should have been called")
	}

	// Now set to nil and verify it doesn't call our logger
	noOpCalled = false
	SetLogger(nil)
	Logf("test")
	if noOpCalled {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	// Test that Logf is not nil by default
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	// Test that we can call it without panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestWritersForLevel(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		level             string
		wantOps, wantDiag bool
		wantTrace         bool
	}{
		{"ops", true, false, false},
		{"", true, false, false},
		{"diag", true, true, false},
		{"TRACE", true, true, true},
		{"off", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			w := WritersForLevel(tt.level, &buf)
			if (w.Ops != nil) != tt.wantOps {
				t.Errorf("Ops enabled = %v, want %v", w.Ops != nil, tt.wantOps)
			}
			if (w.Diag != nil) != tt.wantDiag {
				t.Errorf("Diag enabled = %v, want %v", w.Diag != nil, tt.wantDiag)
			}
			if (w.Trace != nil) != tt.wantTrace {
				t.Errorf("Trace enabled = %v, want %v", w.Trace != nil, tt.wantTrace)
			}
		})
	}
}

func TestNewStreamLogger(t *testing.T) {
	if l := NewStreamLogger("[x] ", nil); l != nil {
		t.Error("nil writer should produce a nil logger")
	}

	var buf bytes.Buffer
	l := NewStreamLogger("[tl] ", &buf)
	l.Printf("hello %d", 7)
	if !strings.Contains(buf.String(), "[tl] ") || !strings.Contains(buf.String(), "hello 7") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
