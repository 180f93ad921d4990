// Command filterhost runs classic image filter modules, and the filters built into it, on
// image files.
//
//	filterhost list
//	filterhost info <filter>
//	filterhost about <filter>
//	filterhost run [-mask m.png] [-select x0,y0,x1,y1] [-profile] <filter> <in> <out>
//
// A filter is the name of a built-in filter, the path of a module, or a module name looked
// up in the configured search paths.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"github.com/justyntemme/filterhost/pkg/framework/config"
	"github.com/justyntemme/filterhost/pkg/framework/debug"

	// Built-in filters.
	_ "github.com/justyntemme/filterhost/examples/invert"
	_ "github.com/justyntemme/filterhost/examples/levels"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"list", "list", listCmd},
	{"info", "info <filter>", infoCmd},
	{"about", "about <filter>", aboutCmd},
	{"run", "run [flags] <filter> <in> <out>", runCmd},
}

// env is what every command runs with.
type env struct {
	cfg    *config.Config
	log    debug.Logger
	stdout io.Writer
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: filterhost [-config file] [-log level] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintln(w, "\nflags:")
	global.SetOutput(w)
	global.PrintDefaults()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("filterhost", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	cfgPath := global.String("config", "", "HCL configuration file")
	level := global.String("log", "", "log level, overrides the configuration")
	if err := global.Parse(args); err != nil || global.NArg() == 0 {
		usage(stderr, global)
		return 2
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprint(stderr, failure(err))
			return 1
		}
	}
	if *level != "" {
		if _, err := debug.ParseLevel(*level); err != nil {
			fmt.Fprint(stderr, failure(err))
			return 2
		}
		cfg.Log.Level = *level
	}
	e := &env{cfg: cfg, log: debug.New(stderr, "filterhost", cfg.LogLevel()), stdout: stdout}

	name, rest := global.Arg(0), global.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, e, rest)
		switch {
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "usage: filterhost %s\n", c.usage)
			return 2
		case err != nil:
			fmt.Fprint(stderr, failure(err))
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", name)
	usage(stderr, global)
	return 2
}

// failure formats err for the terminal. Configuration errors carry their own layout.
func failure(err error) string {
	var ce *config.Error
	if errors.As(err, &ce) {
		return ce.Error()
	}
	var sb strings.Builder
	sb.WriteString("Error:\n")
	for _, l := range strings.Split(wordwrap.WrapString(err.Error(), 78), "\n") {
		sb.WriteString("  " + l + "\n")
	}
	return sb.String()
}
