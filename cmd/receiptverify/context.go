package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/joseph-ayodele/receipt-verifier/internal/bootstrap"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
)

const defaultDBPath = "receipts.db"

type globalFlags struct {
	db       string
	org      string
	actor    string
	perms    []string
	policy   string
	logLevel string
}

type commandContext struct {
	flags *globalFlags

	appOnce sync.Once
	app     *bootstrap.App
	appErr  error
	logger  *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) config() *common.Config {
	cfg := common.LoadConfig()
	if c.flags.db != "" || cfg.Database.DSN == "" {
		cfg.Database.DSN = ""
		cfg.Database.SQLitePath = c.dbPath()
	}
	if c.flags.policy != "" {
		cfg.PolicyFile = c.flags.policy
	}
	if c.flags.logLevel != "" {
		cfg.LogLevel = c.flags.logLevel
	}
	return cfg
}

// dbPath is the SQLite file in use, or "" when DB_URL selects Postgres.
func (c *commandContext) dbPath() string {
	if p := strings.TrimSpace(c.flags.db); p != "" {
		return p
	}
	if os.Getenv("DB_URL") != "" {
		return ""
	}
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		return p
	}
	return defaultDBPath
}

func (c *commandContext) ensureApp(ctx context.Context) (*bootstrap.App, error) {
	c.appOnce.Do(func() {
		cfg := c.config()
		c.logger = newLogger(os.Stderr, cfg.LogLevel)
		slog.SetDefault(c.logger)
		c.app, c.appErr = bootstrap.New(ctx, cfg, c.logger)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
	}
}

func (c *commandContext) orgID() (string, error) {
	org := strings.TrimSpace(c.flags.org)
	if org == "" {
		org = os.Getenv("RV_ORG")
	}
	if org == "" {
		return "", errors.New("--org is required")
	}
	return org, nil
}

// requestContext carries the tenant and the acting user like the gRPC
// interceptor does for remote calls.
func (c *commandContext) requestContext(ctx context.Context) (context.Context, error) {
	org, err := c.orgID()
	if err != nil {
		return nil, err
	}
	ctx = common.WithOrgID(ctx, org)
	actor := strings.TrimSpace(c.flags.actor)
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor != "" {
		ctx = common.WithActor(ctx, common.Actor{ID: actor, Permissions: c.flags.perms})
	}
	return ctx, nil
}

// newLogger writes text logs to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string) *slog.Logger {
	return common.NewLogger(w, level, !isTerminal(w))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
