package pipeline

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_Enable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(&buf, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	if opsLogger == nil {
		t.Fatal("opsLogger should be non-nil after SetLogWriters with a writer")
	}
	opsf("hello %s", "ops")
	if !strings.Contains(buf.String(), "hello ops") {
		t.Errorf("ops stream did not receive message, got %q", buf.String())
	}
}

func TestSetLogWriters_AllStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	opsf("o")
	diagf("d")
	tracef("t")

	if !strings.Contains(ops.String(), "o") || !strings.Contains(diag.String(), "d") || !strings.Contains(trace.String(), "t") {
		t.Error("each stream should receive its own message")
	}
}

func TestSetLogWriters_Disable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(&buf, &buf, &buf)
	SetLogWriters(nil, nil, nil)

	if opsLogger != nil || diagLogger != nil || traceLogger != nil {
		t.Fatal("all loggers should be nil after SetLogWriters(nil, nil, nil)")
	}
	// Must not panic with loggers disabled.
	opsf("dropped")
	diagf("dropped")
	tracef("dropped")
}

func TestSetLegacyLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLegacyLogger(&buf)
	defer SetLogWriters(nil, nil, nil)

	opsf("a")
	diagf("b")
	tracef("c")

	out := buf.String()
	for _, want := range []string{"a", "b", "c"} {
		if !strings.Contains(out, want) {
			t.Errorf("legacy writer missing %q in %q", want, out)
		}
	}
}
