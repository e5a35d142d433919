package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pagepass/internal/config"
	"pagepass/internal/faults"
	"pagepass/internal/ipc"
)

// userEnv names the environment variable consulted when --as is not set.
const userEnv = "PAGEPASS_USER"

type commandContext struct {
	socketFlag *string
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag, userFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	dataDir, err := config.ExpandPath("~/.local/share/pagepass")
	if err != nil {
		return filepath.Join(os.TempDir(), "pagepass.sock")
	}
	return filepath.Join(dataDir, "pagepass.sock")
}

// user returns the acting user from --as or $PAGEPASS_USER.
func (c *commandContext) user() (string, error) {
	if c.userFlag != nil {
		if user := strings.TrimSpace(*c.userFlag); user != "" {
			return user, nil
		}
	}
	if user := strings.TrimSpace(os.Getenv(userEnv)); user != "" {
		return user, nil
	}
	return "", errors.New("no acting user: pass --as <user> or set " + userEnv)
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// withUserClient resolves the acting user before dialing.
func (c *commandContext) withUserClient(fn func(client *ipc.Client, user string) error) error {
	user, err := c.user()
	if err != nil {
		return err
	}
	return c.withClient(func(client *ipc.Client) error {
		return fn(client, user)
	})
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `pagepass start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseBookID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.Wrap(faults.ErrInvalidArgument, "parse book id", fmt.Sprintf("%q is not a book id", arg))
	}
	return id, nil
}

// describeError renders classified failures with their kind so scripts can
// match on it.
func describeError(err error) string {
	kind := faults.KindOf(err)
	if kind == faults.KindInternal {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", kind, err)
}

// exitCode maps error kinds to stable process exit codes.
func exitCode(err error) int {
	switch faults.KindOf(err) {
	case faults.KindInvalidArgument:
		return 2
	case faults.KindNotAuthorized:
		return 3
	case faults.KindNotFound:
		return 4
	case faults.KindInternal:
		return 1
	default:
		return 5
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
