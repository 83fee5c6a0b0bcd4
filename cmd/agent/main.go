package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/config"
	"github.com/atcrelay/agent/internal/console"
	"github.com/atcrelay/agent/internal/executor"
	"github.com/atcrelay/agent/internal/handlers"
	"github.com/atcrelay/agent/internal/log"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/pipeline"
	"github.com/atcrelay/agent/internal/registry"
	"github.com/atcrelay/agent/internal/resolver"
	"github.com/atcrelay/agent/internal/sim"
	wsclient "github.com/atcrelay/agent/internal/websocket"
)

const (
	exitOK = iota
	exitFailure
	exitAuthRejected
)

type flags struct {
	configPath string
	url        string
	airport    string
	scenario   string
	noConsole  bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", config.DefaultPath(), "Path to agent config file")
	flag.StringVar(&f.url, "url", "", "Server URL (e.g. ws://localhost:8000)")
	flag.StringVar(&f.airport, "airport", "", "Airport definition file")
	flag.StringVar(&f.scenario, "scenario", "", "Traffic scenario file")
	flag.BoolVar(&f.noConsole, "no-console", false, "Run without the terminal console")
	flag.Parse()

	os.Exit(run(f))
}

func run(f flags) int {
	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitFailure
	}

	useConsole := cfg.Console && !f.noConsole && term.IsTerminal(int(os.Stdout.Fd()))

	if cfg.Password == "" {
		if cfg.Password, err = readPassword(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "password: %v\n", err)
			return exitFailure
		}
	}

	lg, err := log.New(cfg.LogLevel, cfg.LogDir, !useConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		return exitFailure
	}

	world, err := buildWorld(cfg)
	if err != nil {
		lg.Error("loading world", slog.Any("error", err))
		return exitFailure
	}
	lg.Info("starting agent", slog.String("installation_id", cfg.InstallationID),
		slog.String("server", cfg.ServerURL), slog.String("airport", world.Airport().ICAO),
		slog.Int("aircraft", len(world.Members())))

	ex := executor.New(lg)
	handlers.NewAircraft().Register(ex)
	handlers.NewSystem(world).Register(ex)

	var con *console.Console
	var surface pipeline.Surface = &pipeline.TextBuffer{}
	if useConsole {
		con = console.New(lg)
		surface = con
	}

	queue := pipeline.New(parser.New(), resolver.New(registry.New(world)), ex, surface, lg, pipeline.Options{
		TypingDelay: cfg.TypingDelay,
		SettleDelay: cfg.SettleDelay,
	})

	client := wsclient.New(wsclient.Options{
		ServerURL:      cfg.ServerURL,
		InstallationID: cfg.InstallationID,
		Password:       cfg.Password,
		ReconnectDelay: cfg.ReconnectDelay,
		OnConnState: func(up bool) {
			if con != nil {
				con.SetConnected(up)
			}
		},
	}, queue, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// The transport outlives the queue so the reply for an instruction
	// still in flight at shutdown can be sent.
	wsCtx, wsCancel := context.WithCancel(context.Background())
	defer wsCancel()

	g.Go(func() error {
		defer wsCancel()
		return queue.Run(gctx)
	})
	g.Go(func() error {
		err := client.Run(wsCtx)
		if errors.Is(err, wsclient.ErrAuthRejected) && con != nil {
			con.Notice(gctx, "Server rejected the password or installation id. The agent will exit.")
		}
		return err
	})
	if con != nil {
		g.Go(func() error { return con.Run(gctx, queue) })
	}

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, console.ErrQuit):
		lg.Info("agent stopped")
		return exitOK
	case errors.Is(err, wsclient.ErrAuthRejected):
		lg.Error("agent stopped", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, "atcrelay: authentication rejected by server")
		return exitAuthRejected
	default:
		lg.Error("agent stopped", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "atcrelay: %v\n", err)
		return exitFailure
	}
}

// loadConfig reads the config file, creating it on first run, then applies
// environment and flag overrides. The file is written back when it is new
// or an installation id had to be generated.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	save := false
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
		save = true
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if f.url != "" {
		cfg.ServerURL = f.url
	}
	if f.airport != "" {
		cfg.AirportFile = f.airport
	}
	if f.scenario != "" {
		cfg.ScenarioFile = f.scenario
	}

	if cfg.EnsureInstallationID() {
		save = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if save {
		if err := cfg.Save(f.configPath); err != nil {
			return nil, fmt.Errorf("save %s: %w", f.configPath, err)
		}
		fmt.Fprintf(os.Stderr, "Config saved to %s\n", f.configPath)
	}
	return cfg, nil
}

// readPassword prompts on the terminal without echo, or takes the first
// line of in when it is not a terminal.
func readPassword(in *os.File) (string, error) {
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return firstLine(in)
}

func firstLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("no password on stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func buildWorld(cfg *config.Config) (*sim.World, error) {
	ap, err := aviation.LoadAirport(cfg.AirportFile)
	if err != nil {
		return nil, err
	}
	w := sim.NewWorld(ap)

	if cfg.ScenarioFile == "" {
		return w, nil
	}
	sc, err := aviation.LoadScenario(cfg.ScenarioFile)
	if err != nil {
		return nil, err
	}
	for _, ac := range sc.Aircraft {
		if err := w.Add(ac); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.ScenarioFile, err)
		}
	}
	return w, nil
}
