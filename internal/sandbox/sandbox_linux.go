//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// linuxFactory prepares sandboxes using mount and user namespaces, bind
// mounts for I/O scoping, and rlimits for resource bounds. Grounded on
// distri's internal/build/build.go hermetic-build path (CLONE_NEWNS |
// CLONE_NEWUSER, bind mounts, chroot) and internal/build/mount.go /
// userns.go.
type linuxFactory struct{}

// NewFactory returns the platform sandbox factory.
func NewFactory() Factory { return linuxFactory{} }

func (linuxFactory) Prepare(ctx context.Context, spec Spec) (*Sandbox, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "builder-sandbox-")
	if err != nil {
		return nil, xerrors.Errorf("sandbox: creating root: %w", err)
	}

	sb := &Sandbox{spec: spec, root: root}

	cleanup := func() {
		os.RemoveAll(root)
	}

	if spec.ToolImage != "" {
		if err := extractToolImage(root, spec.ToolImage); err != nil {
			cleanup()
			return nil, err
		}
	}

	for _, m := range spec.Inputs {
		dst := filepath.Join(root, m.SandboxPath)
		if err := bindMount(m.HostPath, dst, true); err != nil {
			cleanup()
			return nil, &Error{Kind: ErrorUndeclaredInputAccess, Err: xerrors.Errorf("sandbox: mounting input %s: %w", m.SandboxPath, err)}
		}
	}
	for _, m := range spec.Outputs {
		dst := filepath.Join(root, m.SandboxPath)
		if err := os.MkdirAll(dst, 0755); err != nil {
			cleanup()
			return nil, xerrors.Errorf("sandbox: preparing output dir %s: %w", m.SandboxPath, err)
		}
	}
	if spec.Temp != "" {
		if err := os.MkdirAll(filepath.Join(root, spec.Temp), 0755); err != nil {
			cleanup()
			return nil, xerrors.Errorf("sandbox: preparing temp dir: %w", err)
		}
	}

	sb.prepared = true
	return sb, nil
}

// bindMount bind-mounts src at dst, creating dst and optionally
// remounting read-only, mirroring distri's MS_BIND | MS_RDONLY pattern
// in internal/build/build.go.
func bindMount(src, dst string, readOnly bool) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		f.Close()
	}
	if err := syscall.Mount(src, dst, "", syscall.MS_BIND, ""); err != nil {
		return xerrors.Errorf("bind mount %s -> %s: %w", src, dst, err)
	}
	if readOnly {
		if err := syscall.Mount("", dst, "", syscall.MS_BIND|syscall.MS_REMOUNT|syscall.MS_RDONLY, ""); err != nil {
			return xerrors.Errorf("remount ro %s: %w", dst, err)
		}
	}
	return nil
}

// Run executes argv inside fresh mount, user, UTS and IPC namespaces
// (plus a network namespace under the Hermetic policy) chrooted at
// sb.root, capturing bounded stdout/stderr and resource usage.
// Grounded on build.go's re-exec-with-CLONE_NEWNS|CLONE_NEWUSER pattern;
// here the caller-supplied argv runs directly under the chroot rather
// than re-execing the builder binary, since the action itself (not a
// sub-build) is what needs isolating.
func (sb *Sandbox) Run(ctx context.Context, argv []string) (ExecResult, error) {
	if !sb.prepared {
		return ExecResult{}, xerrors.New("sandbox: Run called before Prepare")
	}
	if len(argv) == 0 {
		return ExecResult{}, xerrors.New("sandbox: empty argv")
	}

	var cancel context.CancelFunc
	if sb.spec.Limits.WallTime > 0 {
		ctx, cancel = context.WithTimeout(ctx, sb.spec.Limits.WallTime)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// Chroot happens before chdir in the forked child (see
	// syscall.forkAndExecInChild on linux), so cmd.Dir must already be
	// expressed relative to the new root.
	cmd.Dir = "/"
	if sb.spec.Temp != "" {
		cmd.Dir = filepath.Join("/", sb.spec.Temp)
	}

	cloneFlags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWUSER | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC)
	if sb.spec.Network == Hermetic {
		cloneFlags |= syscall.CLONE_NEWNET
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: cloneFlags,
		Chroot:     sb.root,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getgid(), Size: 1},
		},
	}

	env := make([]string, 0, len(sb.spec.Env))
	for k, v := range sb.spec.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &boundedWriter{buf: &stdout, limit: maxCaptured}
	cmd.Stderr = &boundedWriter{buf: &stderr, limit: maxCaptured}

	if sb.spec.Limits.MemoryBytes > 0 || sb.spec.Limits.MaxOpenFDs > 0 {
		applyRlimits(cmd, sb.spec.Limits)
	}

	start := time.Now()
	runErr := cmd.Run()
	wall := time.Since(start)

	res := ExecResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if ps := cmd.ProcessState; ps != nil {
		res.ExitCode = ps.ExitCode()
		res.UserTime = ps.UserTime()
		res.SysTime = ps.SystemTime()
		if ru, ok := ps.SysUsage().(*syscall.Rusage); ok {
			res.MaxRSSBytes = ru.Maxrss * 1024
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, &Error{Kind: ErrorLimitExceeded, Retryable: true, Err: xerrors.Errorf("sandbox: wall time limit %s exceeded: %w", sb.spec.Limits.WallTime, ctx.Err())}
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			if hint := usernsHint(); hint != "" {
				return res, xerrors.Errorf("sandbox: starting %v (wall=%s): %w\n%s", argv, wall, runErr, hint)
			}
			return res, xerrors.Errorf("sandbox: starting %v (wall=%s): %w", argv, wall, runErr)
		}
		// Non-zero exit is not a sandbox error; the caller (runner)
		// interprets res.ExitCode.
	}
	return res, nil
}

// usernsHint mirrors distri's internal/build/userns.go: when namespace
// setup fails, most likely cause on Debian/Arch/RHEL hosts is that
// unprivileged user namespaces are disabled at the kernel level, so this
// inspects sysctls and docker-cgroup membership and proposes a fix.
func usernsHint() string {
	var runningInDocker bool
	if b, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		if strings.Contains(string(b), "docker") {
			runningInDocker = true
		}
	}

	var fixes []string
	if b, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if val := strings.TrimSpace(string(b)); val != "1" {
			fixes = append(fixes, "sysctl -w kernel.unprivileged_userns_clone=1")
		}
	}
	if b, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if val := strings.TrimSpace(string(b)); val == "0" {
			fixes = append(fixes, "sysctl -w user.max_user_namespaces=1000")
		}
	}
	if len(fixes) == 0 {
		return ""
	}
	suggestion := strings.Join(fixes, "\n")
	if runningInDocker {
		return "On your Docker host (not in the container), try:\n" + suggestion
	}
	return "try:\n" + suggestion
}

// applyRlimits sets best-effort rlimits with Setrlimit on the current
// process, since exec.Cmd offers no pre-exec hook in the child; the
// forked child inherits them. The limits therefore also apply to the
// builder process itself and are not scoped to a single action.
func applyRlimits(cmd *exec.Cmd, limits ResourceLimits) {
	if limits.MemoryBytes > 0 {
		_ = unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: limits.MemoryBytes, Max: limits.MemoryBytes})
	}
	if limits.MaxOpenFDs > 0 {
		_ = unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Cur: limits.MaxOpenFDs, Max: limits.MaxOpenFDs})
	}
}

// Teardown unmounts every bind mount under sb.root and removes the
// sandbox root. Idempotent: a second call is a no-op.
func (sb *Sandbox) Teardown() error {
	if sb.tornDown {
		return nil
	}
	sb.tornDown = true

	var firstErr error
	for _, m := range sb.spec.Inputs {
		dst := filepath.Join(sb.root, m.SandboxPath)
		if err := syscall.Unmount(dst, unix.MNT_DETACH); err != nil && firstErr == nil {
			firstErr = xerrors.Errorf("sandbox: unmounting %s: %w", dst, err)
		}
	}
	if err := os.RemoveAll(sb.root); err != nil && firstErr == nil {
		firstErr = xerrors.Errorf("sandbox: removing root: %w", err)
	}
	return firstErr
}

// boundedWriter caps how much of a stream is retained in memory,
// matching spec.md's bounded stdout/stderr capture requirement; bytes
// beyond the limit are discarded but the full stream still reaches the
// underlying buffer up to that point.
type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.buf.Len() < w.limit {
		remaining := w.limit - w.buf.Len()
		if remaining > len(p) {
			remaining = len(p)
		}
		w.buf.Write(p[:remaining])
	}
	return len(p), nil
}

var _ io.Writer = (*boundedWriter)(nil)
