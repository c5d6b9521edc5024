// Package gpio implements Linux sysfs GPIO bindings: a level input read via
// epoll-driven edge interrupts, and a simple digital output write. Edge
// waits use the sysfs `gpio/gpioN/value` + `epoll_wait` idiom, so no cgo
// GPIO library is required.
package gpio

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Edge selects which sysfs edge trigger to arm before epoll-waiting.
type Edge string

const (
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

const sysfsGPIORoot = "/sys/class/gpio"

// Line is an open sysfs GPIO line, exported and ready for epoll-driven
// interrupt reads or direct writes.
type Line struct {
	pin  int
	dir  string
	file *os.File
	epfd int
}

// Open exports pin (if not already) and opens its value file in dir
// ("in" or "out").
func Open(pin int, dir string) (*Line, error) {
	if err := export(pin); err != nil {
		return nil, err
	}
	if err := writeFile(fmt.Sprintf("%s/gpio%d/direction", sysfsGPIORoot, pin), dir); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(fmt.Sprintf("%s/gpio%d/value", sysfsGPIORoot, pin), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("gpio%d: open value file: %w", pin, err)
	}
	return &Line{pin: pin, dir: dir, file: f}, nil
}

// ArmEdge configures which transition wakes WaitEdge and opens the epoll
// instance used to wait for it.
func (l *Line) ArmEdge(edge Edge) error {
	if err := writeFile(fmt.Sprintf("%s/gpio%d/edge", sysfsGPIORoot, l.pin), string(edge)); err != nil {
		return err
	}
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("gpio%d: epoll_create1: %w", l.pin, err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(l.file.Fd())}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(l.file.Fd()), &ev); err != nil {
		unix.Close(epfd)
		return fmt.Errorf("gpio%d: epoll_ctl: %w", l.pin, err)
	}
	l.epfd = epfd
	return nil
}

// WaitEdge blocks until the armed edge fires (or timeoutMs elapses, -1 for
// forever), then reads and returns the current level.
func (l *Line) WaitEdge(timeoutMs int) (int, error) {
	events := make([]unix.EpollEvent, 1)
	n, err := unix.EpollWait(l.epfd, events, timeoutMs)
	if err != nil {
		return 0, fmt.Errorf("gpio%d: epoll_wait: %w", l.pin, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("gpio%d: edge wait timed out", l.pin)
	}
	return l.Read()
}

// Read returns the current line level (0 or 1).
func (l *Line) Read() (int, error) {
	if _, err := l.file.Seek(0, 0); err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	n, err := l.file.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("gpio%d: read: %w", l.pin, err)
	}
	v, err := strconv.Atoi(trimNUL(buf[:n]))
	if err != nil {
		return 0, fmt.Errorf("gpio%d: malformed value: %w", l.pin, err)
	}
	return v, nil
}

// Write sets the line level (output direction only).
func (l *Line) Write(level int) error {
	_, err := l.file.WriteAt([]byte(strconv.Itoa(level)), 0)
	if err != nil {
		return fmt.Errorf("gpio%d: write: %w", l.pin, err)
	}
	return nil
}

// Close releases the epoll instance and value file handle.
func (l *Line) Close() error {
	if l.epfd != 0 {
		unix.Close(l.epfd)
	}
	return l.file.Close()
}

func export(pin int) error {
	path := fmt.Sprintf("%s/gpio%d", sysfsGPIORoot, pin)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeFile(sysfsGPIORoot+"/export", strconv.Itoa(pin))
}

func writeFile(path, val string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(val)
	return err
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 || c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
