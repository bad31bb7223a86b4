package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/matrixctl/internal/testutil/stubserver"
	"github.com/danmuck/matrixctl/internal/testutil/testlog"
)

func TestRunUsageWithoutConnecting(t *testing.T) {
	testlog.Start(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"4", "3"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("exit code=%d want 2", code)
	}
	if !strings.Contains(stderr.String(), "Usage: matrixctl") {
		t.Fatalf("missing usage: %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("nothing should be printed to stdout: %q", stdout.String())
	}
}

func TestRunRejectsBadPositional(t *testing.T) {
	testlog.Start(t)
	cases := [][]string{
		{"-1", "3", "0"},
		{"4", "-3", "0"},
		{"4", "3", "maybe"},
	}
	for _, args := range cases {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), args, &stdout, &stderr); code != 2 {
			t.Fatalf("args=%v exit code=%d want 2", args, code)
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	testlog.Start(t)
	srv := stubserver.Start(t, stubserver.Script{Pending: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-addr", srv.Addr(), "-seed", "7", "4", "3", "1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code=%d stderr=%q", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"Constructing matrix...", "Hello, I am client with matrix:", "Received matrix: [["} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}

	got, err := srv.Wait()
	if err != nil {
		t.Fatalf("stub server: %v", err)
	}
	if got.Workers != 4 || got.Matrix.Dim() != 3 {
		t.Fatalf("unexpected request: workers=%d dim=%d", got.Workers, got.Matrix.Dim())
	}
}

func TestRunQuietOutput(t *testing.T) {
	testlog.Start(t)
	srv := stubserver.Start(t, stubserver.Script{})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-addr", srv.Addr(), "1", "2", "0"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code=%d stderr=%q", code, stderr.String())
	}
	if strings.Contains(stdout.String(), "[[") {
		t.Fatalf("matrix contents should not be printed: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Received matrix\n") {
		t.Fatalf("missing completion line: %q", stdout.String())
	}
}

func TestRunReportsTransportFailure(t *testing.T) {
	testlog.Start(t)
	srv := stubserver.Start(t, stubserver.Script{ResetOn: "SYN"})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-addr", srv.Addr(), "1", "2", "0"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code=%d want 1", code)
	}
	if !strings.Contains(stderr.String(), "matrixctl: protocol: transport failure") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
	_, _ = srv.Wait()
}
