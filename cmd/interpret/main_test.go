package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leonardotrapani/interpret/internal/bus"
)

func TestLanguagesCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := languagesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"en", "zh", "中文", "ko", "ja", "auto"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

// serveOnce answers a single control request with reply.
func serveOnce(t *testing.T, reply string) <-chan string {
	t.Helper()
	t.Setenv("INTERPRET_RUNTIME_DIR", t.TempDir())
	ln, err := bus.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		line, _ := bufio.NewReader(c).ReadString('\n')
		got <- strings.TrimSpace(line)
		c.Write([]byte(reply + "\n"))
	}()
	return got
}

func TestTargetCmd(t *testing.T) {
	got := serveOnce(t, "OK target=ja id=abc")

	var out bytes.Buffer
	cmd := targetCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ja", "--id", "abc"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	req, err := bus.ParseRequest(<-got)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.Cmd != bus.CmdTarget || req.Args["target"] != "ja" || req.Args["id"] != "abc" {
		t.Errorf("request = %+v", req)
	}
	if strings.TrimSpace(out.String()) != "OK target=ja id=abc" {
		t.Errorf("output = %q", out.String())
	}
}

func TestStopCmd_ErrorReply(t *testing.T) {
	serveOnce(t, "ERR no active session")

	cmd := stopCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.Execute()
	if err == nil || err.Error() != "no active session" {
		t.Errorf("Execute() error = %v, want no active session", err)
	}
}

func TestListenDemo(t *testing.T) {
	var out bytes.Buffer
	cmd := listenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--demo", "--target", "en"})

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"Interpreting demo", "target English", "session ended", "Transcript"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
