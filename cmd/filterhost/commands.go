package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io"
	"strconv"
	"strings"

	"github.com/justyntemme/filterhost/pkg/framework/aete"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/pipl"
	"github.com/justyntemme/filterhost/pkg/framework/state"
	"github.com/justyntemme/filterhost/pkg/imaging"
	"github.com/justyntemme/filterhost/pkg/plugin"
)

// target is a resolved filter, built in or native.
type target struct {
	entry    filter.Entry
	identity string
	info     *pipl.Info
	terms    *aete.Table
	opts     []filter.Option
	close    func() error
}

func (e *env) resolve(name string, load bool) (*target, error) {
	if f, ok := plugin.Builtin(name); ok {
		t := &target{entry: f, identity: name, info: f.Info(), opts: plugin.BuiltinOptions(f), close: func() error { return nil }}
		if tm, ok := f.(plugin.Terminologist); ok {
			t.terms = tm.Terminology()
		}
		return t, nil
	}
	path, err := plugin.Find(name, e.cfg.Plugins.SearchPaths)
	if err != nil {
		return nil, err
	}
	if !load {
		info, terms, err := plugin.Describe(path)
		if err != nil {
			return nil, err
		}
		return &target{identity: path, info: info, terms: terms, close: func() error { return nil }}, nil
	}
	m, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	e.log.Debug("module loaded", "path", path, "name", m.Identity())
	return &target{entry: m, identity: m.Identity(), info: m.Info, terms: m.Terms, opts: m.Options(), close: m.Close}, nil
}

func listCmd(_ context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	for _, name := range plugin.Builtins() {
		f, _ := plugin.Builtin(name)
		fmt.Fprintf(e.stdout, "%-24s %-12s built in\n", name, f.Info().Category)
	}
	found, err := plugin.Scan(e.cfg.Plugins.SearchPaths)
	for _, l := range found {
		fmt.Fprintf(e.stdout, "%-24s %-12s %s\n", l.Info.Name, l.Info.Category, l.Path)
	}
	if err != nil {
		e.log.Warn("search path unreadable", "error", err)
	}
	return nil
}

func infoCmd(_ context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	t, err := e.resolve(args[0], false)
	if err != nil {
		return err
	}
	defer t.close()
	printInfo(e.stdout, t)
	return nil
}

func printInfo(w io.Writer, t *target) {
	i := t.info
	fmt.Fprintf(w, "name:      %s\n", i.Name)
	fmt.Fprintf(w, "category:  %s\n", i.Category)
	fmt.Fprintf(w, "version:   %d\n", i.Version)
	if entry, err := i.Entry(); err == nil {
		fmt.Fprintf(w, "entry:     %s\n", entry)
	}
	if i.Modes != nil {
		fmt.Fprintf(w, "modes:     % x\n", i.Modes)
	}
	if term := i.Terminology; term != nil {
		fmt.Fprintf(w, "event:     '%s' '%s' (scope %s)\n", term.Class, term.Event, term.Scope)
	}
	if t.terms == nil {
		return
	}
	for _, s := range t.terms.Suites {
		for _, ev := range s.Events {
			fmt.Fprintf(w, "\n%s: %s\n", ev.Name, ev.Description)
			for _, p := range ev.Parameters {
				opt := ""
				if p.Flags&aete.FlagOptional != 0 {
					opt = " (optional)"
				}
				fmt.Fprintf(w, "  '%s' %-10s %s%s\n", p.Key, p.Name, p.Type, opt)
			}
		}
	}
}

func aboutCmd(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	t, err := e.resolve(args[0], true)
	if err != nil {
		return err
	}
	defer t.close()
	img, _ := imaging.FromImage(image.NewGray(image.Rect(0, 0, 1, 1)))
	s, err := filter.NewSession(t.entry, img, append(t.opts, filter.WithLogger(e.log), filter.WithConfig(e.cfg))...)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.About(ctx)
}

func runCmd(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maskPath := fs.String("mask", "", "grayscale image used as the selection mask")
	sel := fs.String("select", "", "selection rectangle x0,y0,x1,y1")
	profile := fs.Bool("profile", false, "print selector timings")
	stateless := fs.Bool("stateless", false, "neither restore nor save parameters")
	if err := fs.Parse(args); err != nil || fs.NArg() != 3 {
		return errUsage
	}
	name, in, out := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	src, err := imaging.Load(in)
	if err != nil {
		return err
	}
	var popts []imaging.Option
	if *maskPath != "" {
		m, err := imaging.Load(*maskPath)
		if err != nil {
			return err
		}
		popts = append(popts, imaging.WithMask(grayOf(m)))
	}
	if *sel != "" {
		r, err := parseRect(*sel)
		if err != nil {
			return err
		}
		popts = append(popts, imaging.WithSelection(r))
	}
	provider, err := imaging.FromImage(src, popts...)
	if err != nil {
		return err
	}

	t, err := e.resolve(name, true)
	if err != nil {
		return err
	}
	defer t.close()

	opts := append(t.opts,
		filter.WithLogger(e.log),
		filter.WithConfig(e.cfg),
		filter.WithProgress(func(done, total int32) {
			e.log.Debug("progress", "done", done, "total", total)
		}))
	if !*stateless {
		opts = append(opts, filter.WithStore(state.NewFileStore(e.cfg.State.Directory), t.identity))
	}
	var prof *debug.Profiler
	if *profile {
		prof = debug.NewProfiler(1024)
		opts = append(opts, filter.WithProfiler(prof))
	}

	s, err := filter.NewSession(t.entry, provider, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	res, err := s.Run(ctx)
	if prof != nil {
		fmt.Fprint(e.stdout, prof.Report())
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %w", t.identity, res.Outcome, err)
	}
	if err := imaging.Save(out, provider.Image()); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: %s, %d continue calls, wrote %s\n", t.identity, res.Outcome, res.Continues, out)
	return nil
}

func grayOf(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Rect, img, img.Bounds().Min, draw.Src)
	return g
}

func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("selection %q: want x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("selection %q: %w", s, err)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("selection %q is empty", s)
	}
	return r, nil
}
