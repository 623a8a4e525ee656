package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

type usageTestCase struct {
	expectToRun bool
	args        []string
	stdout      []string
	stderr      string
}

var usageTestCases = []usageTestCase{
	{false, []string{"--version"}, []string{"harddns-proxy", "Version:"}, ""},
	{false, []string{"-h"}, []string{"NAME", "SYNOPSIS", "OPTIONS", "Version: v"}, ""},
	{false, []string{"-F", "testdata/missing"}, []string{}, "hardcfg:"},
	{false, []string{"-badopt"}, []string{}, "flag provided but not defined"},
	{true, []string{"-F", "testdata/cfg", "-l", "127.0.0.1", "-p", "0"}, []string{}, ""},
}

func TestUsage(t *testing.T) {
	for tx, tc := range usageTestCases {
		t.Run(fmt.Sprintf("%d", tx), func(t *testing.T) {
			args := append([]string{"harddns-proxy"}, tc.args...)
			out := &bytes.Buffer{}
			err := &bytes.Buffer{}
			mainInit(out, err)
			done := make(chan error)
			go func() {
				done <- waitForMainExecute(t, time.Millisecond*200)
			}()
			ec := mainExecute(args)
			e := <-done
			outStr := out.String()
			errStr := err.String()

			if e != nil && tc.expectToRun {
				t.Fatal("Expected to run, but", e, errStr, outStr)
			}
			if ec == 0 && len(tc.stderr) > 0 {
				t.Error("Expected error exit from Execute() with stderr", tc.stderr)
			}
			if !strings.Contains(errStr, tc.stderr) {
				t.Error("Stderr expected:", tc.stderr, "Got:", errStr)
			}
			for _, o := range tc.stdout {
				if !strings.Contains(outStr, o) {
					t.Error("Stdout expected:", o, "Got:", outStr)
				}
			}
		})
	}
}
