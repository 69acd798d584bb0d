package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/google/subcommands"
)

type runCmd struct {
	console bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the watcher: polling, Telegram commands and console" }
func (*runCmd) Usage() string {
	return `stockflow run [-console=false]

  Starts the long running process. The portfolio is refreshed every
  POLL_INTERVAL_SEC, Telegram commands are served when a bot is configured,
  and the same commands are read from stdin unless -console=false.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.console, "console", true, "Read commands from stdin.")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	w := a.watcher

	if a.bot.Enabled() {
		go a.bot.Listen(ctx, w.HandleCommand, w.HandleCallback)
	}
	if c.console {
		go readConsole(ctx, os.Stdin, os.Stdout, func(line string) string { return w.HandleConsoleCommand(ctx, line) })
	}

	a.log.Info().Str("version", a.cfg.Version).Str("broker", a.cfg.Broker).Msg("stockflow initialized")
	a.log.Info().Dur("interval", a.cfg.PollInterval).Msg("Polling interval")

	w.Poll(ctx)

	if err := w.StartStream(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Live prices unavailable, falling back to polling")
	}
	w.SendStartupNotification(ctx)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("🛑 Main loop stopping...")
			// ctx is already cancelled, the goodbye needs its own deadline.
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.SendShutdownNotification(sctx)
			cancel()
			return subcommands.ExitSuccess
		case <-ticker.C:
			a.log.Debug().Time("next", time.Now().Add(a.cfg.PollInterval)).Msg("Next check scheduled")
			w.Poll(ctx)
		}
	}
}

// readConsole feeds lines from r to handle and writes the replies to out.
// The leading slash is optional.
func readConsole(ctx context.Context, r io.Reader, out io.Writer, handle func(string) string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		if reply := handle(line); reply != "" {
			fmt.Fprintln(out, reply)
		}
	}
}

type loginCmd struct {
	username string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and persist the session token" }
func (*loginCmd) Usage() string {
	return `stockflow login [-u <username>] [-p <password>]

  Authenticates against the backend and stores the token in STATE_FILE so
  later runs start logged in. Defaults to STOCKFLOW_USERNAME and
  STOCKFLOW_PASSWORD.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", os.Getenv("STOCKFLOW_USERNAME"), "Username.")
	f.StringVar(&c.password, "p", os.Getenv("STOCKFLOW_PASSWORD"), "Password.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "username and password are required")
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	id, err := a.session.Login(ctx, models.Credentials{Username: c.username, Password: c.password})
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Logged in as %s\n", id.Username)

	if _, err := a.refresher.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "portfolio refresh failed: %v\n", err)
	}
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "forget the persisted session" }
func (*logoutCmd) Usage() string {
	return `stockflow logout
`
}
func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	a.watcher.Logout()
	fmt.Println("Logged out")
	return subcommands.ExitSuccess
}

type portfolioCmd struct{}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "refresh and print the portfolio" }
func (*portfolioCmd) Usage() string {
	return `stockflow portfolio

  Loads the persisted session, fetches the authoritative portfolio and
  prints holdings with their gain/loss and day change.
`
}
func (*portfolioCmd) SetFlags(*flag.FlagSet) {}

func (*portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if _, ok := a.session.CurrentIdentity(); !ok {
		fmt.Fprintln(os.Stderr, "not logged in, run `stockflow login` first")
		return subcommands.ExitFailure
	}
	if _, err := a.refresher.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(a.watcher.HandleCommand(ctx, "/portfolio"))
	return subcommands.ExitSuccess
}

type healthCmd struct{}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "check that the backend answers" }
func (*healthCmd) Usage() string {
	return `stockflow health
`
}
func (*healthCmd) SetFlags(*flag.FlagSet) {}

func (*healthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	hc, ok := a.broker.(interface {
		Health(ctx context.Context) error
	})
	if !ok {
		fmt.Printf("%s broker has no health endpoint\n", a.cfg.Broker)
		return subcommands.ExitSuccess
	}
	if err := hc.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("healthy")
	return subcommands.ExitSuccess
}
