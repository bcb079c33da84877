package update

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// packageSyncTimeout bounds the dependency sync after a pull.
const packageSyncTimeout = 5 * time.Minute

// VersionSource provides the version available on the target branch.
type VersionSource interface {
	RemoteVersion(ctx context.Context) (string, error)
}

// Stager stages a fresh copy of the repository when a pull cannot succeed.
type Stager interface {
	Stage(ctx context.Context) (string, func(), error)
}

// Commander runs an external command and returns its combined output.
// Indirection so the update flow is testable without git.
type Commander func(ctx context.Context, dir string, argv ...string) (string, error)

// execCommander is the production Commander.
func execCommander(ctx context.Context, dir string, argv ...string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}

// Updater periodically checks for a newer release and applies it.
type Updater struct {
	source      VersionSource
	stager      Stager
	repoDir     string
	branch      string
	processName string
	interval    time.Duration
	run         Commander
	restart     func() error
	logger      *zap.Logger
}

// New creates an updater for the checkout at repoDir tracking branch.
func New(source VersionSource, stager Stager, repoDir, branch, processName string, interval time.Duration, logger *zap.Logger) *Updater {
	u := &Updater{
		source:      source,
		stager:      stager,
		repoDir:     repoDir,
		branch:      branch,
		processName: processName,
		interval:    interval,
		run:         execCommander,
		logger:      logger,
	}
	u.restart = u.restartProcess
	return u
}

// Run checks immediately and then on every interval tick until ctx is
// cancelled. A failed cycle is logged and retried on the next tick.
func (u *Updater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		u.logger.Info("running update check")
		if err := u.TryUpdate(ctx); err != nil {
			u.logger.Error("update check failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryUpdate performs one update cycle: version check, pull, dependency
// sync, restart. Returns nil when already up to date.
func (u *Updater) TryUpdate(ctx context.Context) error {
	local, err := ReadLocalVersion(u.repoDir)
	if err != nil {
		return err
	}
	remote, err := u.source.RemoteVersion(ctx)
	if err != nil {
		return err
	}

	newer, err := NewerThan(remote, local)
	if err != nil {
		return err
	}
	u.logger.Info("version check",
		zap.String("local", local),
		zap.String("remote", remote),
		zap.Bool("update_available", newer))
	if !newer {
		return nil
	}

	if err := u.applyUpdate(ctx); err != nil {
		return err
	}

	u.syncPackages(ctx)

	u.logger.Info("update applied, restarting",
		zap.String("from", local),
		zap.String("to", remote))
	return u.restart()
}

// applyUpdate pulls the target branch, falling back to a staged tarball
// copy when the pull fails.
func (u *Updater) applyUpdate(ctx context.Context) error {
	dirty, err := u.workingTreeDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("working tree at %s is dirty; commit or discard changes before updating", u.repoDir)
	}

	out, err := u.run(ctx, u.repoDir, "git", "pull", "--rebase", "origin", u.branch)
	if err == nil {
		u.logger.Debug("pulled latest changes", zap.String("output", out))
		return nil
	}
	u.logger.Warn("pull failed, staging tarball instead",
		zap.String("output", out),
		zap.Error(err))

	if u.stager == nil {
		return fmt.Errorf("pulling %s: %w", u.branch, err)
	}

	stageDir, cleanup, err := u.stager.Stage(ctx)
	if err != nil {
		return fmt.Errorf("staging release archive: %w", err)
	}
	defer cleanup()

	if err := copyTree(stageDir, u.repoDir); err != nil {
		return fmt.Errorf("applying staged release: %w", err)
	}
	return nil
}

func (u *Updater) workingTreeDirty(ctx context.Context) (bool, error) {
	out, err := u.run(ctx, u.repoDir, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking working tree: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// syncPackages resynchronizes dependencies. Failure is logged, not fatal:
// the restarted process may still run with the previous environment.
func (u *Updater) syncPackages(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, packageSyncTimeout)
	defer cancel()

	out, err := u.run(ctx, u.repoDir, "uv", "sync", "--extra", "all")
	if err != nil {
		u.logger.Error("dependency sync failed",
			zap.String("output", out),
			zap.Error(err))
		return
	}
	u.logger.Info("dependencies synchronized")
}

// restartProcess restarts under PM2 when present, otherwise re-execs the
// current binary in place.
func (u *Updater) restartProcess() error {
	if _, ok := os.LookupEnv("PM2_HOME"); ok {
		if u.processName == "" {
			return fmt.Errorf("PM2 environment detected but no process name configured")
		}
		out, err := u.run(context.Background(), u.repoDir, "pm2", "restart", u.processName)
		if err != nil {
			return fmt.Errorf("pm2 restart %s: %w (%s)", u.processName, err, out)
		}
		// PM2 respawns us; give it time, then exit.
		time.Sleep(5 * time.Second)
		os.Exit(1)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
