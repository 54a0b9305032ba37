package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"calcdesk/internal/calc"
	"calcdesk/internal/calcapi"
	"calcdesk/internal/config"
	"calcdesk/internal/jsbox"
	"calcdesk/internal/logging"
	"calcdesk/internal/tui"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == jsbox.SubcommandName {
		os.Exit(jsbox.RunSandbox())
	}

	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && (args[0] == "eval" || args[0] == "matrix" || args[0] == "register") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	switch cmd {
	case "eval":
		code = runEval(ctx, args)
	case "matrix":
		code = runMatrix(ctx, args)
	case "register":
		code = runRegister(ctx, args)
	default:
		code = runTUI(ctx, args)
	}
	stop()
	os.Exit(code)
}

// app is what every mode needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	closer io.Closer
	client *calcapi.Client
	hooks  *jsbox.Runner
}

func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	log, closer := logging.New(cfg.Logging)
	a := &app{cfg: cfg, log: log, closer: closer, client: calcapi.New(cfg.BaseURL, cfg.Timeout)}

	if cfg.Hooks.Evaluate != "" || cfg.Hooks.Matrix != "" {
		r, err := jsbox.NewRunner()
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("start hook runner: %w", err)
		}
		a.hooks = r
	}

	if cfg.Username != "" {
		if err := a.client.Login(ctx, cfg.Username, cfg.Password); err != nil {
			closer.Close()
			return nil, fmt.Errorf("login as %q: %w", cfg.Username, err)
		}
		log.WithField("username", cfg.Username).Info("logged in")
	}

	log.WithFields(logrus.Fields{"base_url": cfg.BaseURL, "timeout": cfg.Timeout}).Debug("client ready")
	return a, nil
}

func (a *app) evalFormat() calc.Formatter {
	return a.hooks.Hook(a.cfg.Hooks.Evaluate)
}

func (a *app) matrixFormat() calc.Formatter {
	return a.hooks.Hook(a.cfg.Hooks.Matrix)
}

func (a *app) close() {
	if a.cfg.Username != "" {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
		if err := a.client.Logout(ctx); err != nil {
			a.log.WithError(err).Debug("logout failed")
		}
		cancel()
	}
	_ = a.closer.Close()
}

func runTUI(ctx context.Context, args []string) int {
	cfg, err := config.Load("calcdesk", args, os.Stderr)
	if err != nil {
		return usageError(err)
	}
	a, err := setup(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.close()

	m := tui.New(tui.Options{
		API:          a.client,
		Ops:          cfg.Ops,
		HistoryDir:   cfg.HistoryDir,
		HistoryLabel: cfg.HistoryLabel,
		FormatEval:   a.evalFormat(),
		FormatMatrix: a.matrixFormat(),
		Log:          a.log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runEval(ctx context.Context, args []string) int {
	cfg, err := config.Load("eval", args, os.Stderr)
	if err != nil {
		return usageError(err)
	}

	exprs := cfg.Args
	if len(exprs) == 0 {
		exprs, err = readLines(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	a, err := setup(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.close()

	outcomes := calc.EvaluateBatch(ctx, a.client, exprs, cfg.BatchLimit, a.evalFormat(), a.log)
	code := 0
	for i, o := range outcomes {
		fmt.Printf("%s => %s\n", strings.TrimSpace(exprs[i]), o.Text)
		if o.Kind != calc.KindResult {
			code = 2
		}
	}
	return code
}

func runMatrix(ctx context.Context, args []string) int {
	var op, matA, matB string
	cfg, err := config.LoadWith("matrix", args, os.Stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&op, "op", "", "matrix operation (required)")
		fs.StringVar(&matA, "a", "", "matrix A as JSON")
		fs.StringVar(&matB, "b", "", "matrix B as JSON")
	})
	if err != nil {
		return usageError(err)
	}
	if strings.TrimSpace(op) == "" {
		return usageError(errors.New("matrix: -op is required"))
	}

	a, err := setup(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.close()

	out := calc.NewBox("")
	runner := &calc.MatrixRunner{
		API:    a.client,
		A:      calc.NewBox(matA),
		B:      calc.NewBox(matB),
		Output: calc.NewOutput(out),
		Format: a.matrixFormat(),
		Log:    a.log,
	}
	o := runner.Run(ctx, strings.TrimSpace(op))
	fmt.Println(out.Text())
	if o.Kind != calc.KindResult {
		return 2
	}
	return 0
}

// runRegister creates the account named by the configured username. It never
// logs in, so it works before the account exists.
func runRegister(ctx context.Context, args []string) int {
	var pwStdin bool
	cfg, err := config.LoadWith("register", args, os.Stderr, func(fs *flag.FlagSet) {
		fs.BoolVar(&pwStdin, "password-stdin", false, "read the password from the first line of stdin")
	})
	if err != nil {
		return usageError(err)
	}
	password := cfg.Password
	if pwStdin {
		if password, err = readPassword(os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if strings.TrimSpace(cfg.Username) == "" || password == "" {
		return usageError(errors.New("register: set -username and a password (CALCDESK_PASSWORD or -password-stdin)"))
	}

	log, closer := logging.New(cfg.Logging)
	defer closer.Close()

	client := calcapi.New(cfg.BaseURL, cfg.Timeout)
	if err := registerAccount(ctx, client, cfg.Username, password, os.Stdout); err != nil {
		log.WithError(err).WithField("username", cfg.Username).Warn("registration failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log.WithField("username", cfg.Username).Info("registered")
	return 0
}

func registerAccount(ctx context.Context, c *calcapi.Client, username, password string, out io.Writer) error {
	err := c.Register(ctx, username, password)
	if errors.Is(err, calcapi.ErrUsernameTaken) {
		return fmt.Errorf("username %q already exists", username)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "registered %s, you can now log in\n", username)
	return err
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func usageError(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	return 2
}
