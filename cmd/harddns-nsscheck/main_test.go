package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunPTROnly(t *testing.T) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	ec := run([]string{"harddns-nsscheck", "-x", "192.0.2.1"}, out, errBuf)
	if ec != 0 {
		t.Fatal("expected zero exit, got", ec, errBuf.String())
	}
	if !strings.Contains(out.String(), "1.2.0.192.in-addr.arpa") {
		t.Error("expected PTR name in output", out.String())
	}
}

func TestRunMissingConfig(t *testing.T) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	ec := run([]string{"harddns-nsscheck", "-F", "testdata/missing", "example.net"}, out, errBuf)
	if ec == 0 {
		t.Fatal("expected non-zero exit for missing config")
	}
	if !strings.Contains(errBuf.String(), "hardcfg:") {
		t.Error("expected hardcfg error", errBuf.String())
	}
}

func TestRunNoArgs(t *testing.T) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	ec := run([]string{"harddns-nsscheck"}, out, errBuf)
	if ec == 0 {
		t.Fatal("expected non-zero exit with no arguments")
	}
}
