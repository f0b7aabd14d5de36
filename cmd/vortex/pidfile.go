package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"

	"vortex/internal/logger"
)

// writePIDFile records this process in path. A file naming a live process
// means another server is running and is an error; a stale one is replaced.
func writePIDFile(path string) error {
	if pid, err := readPIDFile(path); err == nil && alive(pid) {
		return fmt.Errorf("already running with pid %d (pid file %s)", pid, path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func removePIDFile(path string) {
	pid, err := readPIDFile(path)
	if err != nil || pid != os.Getpid() {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Removing pid file %s: %v", path, err)
	}
}

func readPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s: invalid contents", path)
	}
	return pid, nil
}

func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// signalPIDFile sends sig to the process named in path.
func signalPIDFile(path string, sig syscall.Signal) (int, error) {
	pid, err := readPIDFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("not running (no pid file at %s)", path)
		}
		return 0, err
	}
	if !alive(pid) {
		return 0, fmt.Errorf("not running (stale pid %d in %s)", pid, path)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("signal %d: %w", pid, err)
	}
	return pid, nil
}
