package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "interpret.pid"
const ProtoVer = "0.2"

// Commands understood by the daemon. Each request is one line: the command
// byte optionally followed by key=value arguments.
const (
	CmdToggle  = 't'
	CmdStart   = 'b'
	CmdStop    = 'e'
	CmdTarget  = 'g'
	CmdStatus  = 's'
	CmdVersion = 'v'
	CmdQuit    = 'q'
)

const dialTimeout = 2 * time.Second

// runtimeDir is ~/.cache/interpret unless INTERPRET_RUNTIME_DIR is set.
func runtimeDir() (string, error) {
	if dir := os.Getenv("INTERPRET_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "interpret"), nil
}

func getSockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

func getPidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

// SockPath returns the control socket location.
func SockPath() (string, error) { return getSockPath() }

// PidPath returns the daemon pid file location.
func PidPath() (string, error) { return getPidPath() }

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.DialTimeout("unix", s.path, dialTimeout)
}

func defaultSocket() (*socketManager, error) {
	p, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: p}, nil
}

func Listen() (net.Listener, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.listen()
}

func Dial() (net.Conn, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.dial()
}

// SendCommand sends one request and returns the single-line reply.
func SendCommand(cmd byte, args ...string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()
	return exchange(c, FormatRequest(cmd, args...))
}

func exchange(c net.Conn, req string) (string, error) {
	if _, err := c.Write([]byte(req)); err != nil {
		return "", err
	}
	return bufio.NewReader(c).ReadString('\n')
}

// FormatRequest renders a request line.
func FormatRequest(cmd byte, args ...string) string {
	var b strings.Builder
	b.WriteByte(cmd)
	for _, a := range args {
		if a == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a)
	}
	b.WriteByte('\n')
	return b.String()
}

// Request is a parsed control line.
type Request struct {
	Cmd  byte
	Args map[string]string
}

var ErrEmptyRequest = errors.New("empty request")

// ParseRequest splits a control line into its command and key=value
// arguments. Bare words are stored with an empty value.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, ErrEmptyRequest
	}
	req := Request{Cmd: fields[0][0], Args: make(map[string]string)}
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(f, "=")
		req.Args[k] = v
	}
	return req, nil
}

// Arg is a convenience formatter for key=value arguments.
func Arg(key, value string) string {
	if value == "" {
		return ""
	}
	return key + "=" + value
}

type pidManager struct {
	path string
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

// checkExisting fails when the pid file names a live process. Stale or
// unreadable pid files are removed.
func (p *pidManager) checkExisting() error {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}
	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func defaultPid() (*pidManager, error) {
	p, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

func CheckExistingDaemon() error {
	pm, err := defaultPid()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := defaultPid()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := defaultPid()
	if err != nil {
		return err
	}
	return pm.remove()
}
