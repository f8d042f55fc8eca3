// Copyright 2014 Dirk Pranke. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pyn

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Host is everything pyn needs from the outside world: process invocation,
// the filesystem, the clock, the terminal and the interrupt signal. The
// core never touches the OS directly, which keeps all of it testable
// against FakeHost.
type Host interface {
	// Call runs cmd through the shell and returns its exit code and
	// captured stdout and stderr.
	Call(cmd string) (int, string, string)

	Chdir(dir string) error
	CPUCount() int
	Dirname(path string) string
	Exists(path string) bool
	Getenv(key string) string
	MaybeMkdir(path string) error
	Mtime(path string) (int64, error)
	Read(path string) (string, error)
	Remove(path string) error
	Write(path, contents string) error

	// Time returns seconds since an arbitrary epoch.
	Time() float64

	Stdout() io.Writer
	Stderr() io.Writer
	PrintOut(msg string)
	PrintErr(msg string)

	StderrIsTTY() bool
	TerminalWidth() int

	// Interrupted reports whether an interrupt signal has been received;
	// the dispatcher polls it to stop starting new jobs.
	Interrupted() bool
}

// SystemHost is the real Host.
type SystemHost struct {
	interrupted int32
}

func NewHost() *SystemHost {
	h := &SystemHost{}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		atomic.StoreInt32(&h.interrupted, 1)
		signal.Stop(ch)
	}()
	return h
}

// Call runs cmd via "/bin/sh -c". Build commands use shell redirection
// freely, so there is no exec fast path.
func (h *SystemHost) Call(cmd string) (int, string, string) {
	c := exec.Command("/bin/sh", "-c", cmd)
	// A fresh process group keeps the terminal's SIGINT for the dispatcher,
	// which drains in-flight jobs before exiting.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	exit := 0
	if err != nil {
		exit = 1
		if ee, ok := err.(*exec.ExitError); ok {
			exit = ee.ExitCode()
		}
	}
	return exit, stdout.String(), stderr.String()
}

func (h *SystemHost) Chdir(dir string) error {
	return os.Chdir(dir)
}

func (h *SystemHost) CPUCount() int {
	return runtime.NumCPU()
}

func (h *SystemHost) Dirname(path string) string {
	d := filepath.Dir(path)
	if d == "." {
		return ""
	}
	return d
}

func (h *SystemHost) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (h *SystemHost) Getenv(key string) string {
	return os.Getenv(key)
}

func (h *SystemHost) MaybeMkdir(path string) error {
	if path == "" || h.Exists(path) {
		return nil
	}
	return os.MkdirAll(path, 0o777)
}

func (h *SystemHost) Mtime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano(), nil
}

func (h *SystemHost) Read(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func (h *SystemHost) Remove(path string) error {
	return os.Remove(path)
}

func (h *SystemHost) Write(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o666)
}

func (h *SystemHost) Time() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (h *SystemHost) Stdout() io.Writer {
	return os.Stdout
}

func (h *SystemHost) Stderr() io.Writer {
	return os.Stderr
}

func (h *SystemHost) PrintOut(msg string) {
	io.WriteString(os.Stdout, msg+"\n")
}

func (h *SystemHost) PrintErr(msg string) {
	io.WriteString(os.Stderr, msg+"\n")
}

func (h *SystemHost) StderrIsTTY() bool {
	_, err := unix.IoctlGetWinsize(int(os.Stderr.Fd()), unix.TIOCGWINSZ)
	return err == nil
}

func (h *SystemHost) TerminalWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return 80
	}
	return int(ws.Col)
}

func (h *SystemHost) Interrupted() bool {
	return atomic.LoadInt32(&h.interrupted) != 0
}
