package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/nativehandle/handle"
)

func main() {
	var (
		file        = flag.String("file", "", "Flat handle layout to decode (default stdin)")
		open        = flag.String("open", "", "Build a handle from these files (comma-separated) instead of decoding")
		ints        = flag.String("ints", "", "Integer payload for -open (comma-separated)")
		out         = flag.String("out", "", "With -open, write the copied handle's layout here")
		asJSON      = flag.Bool("json", false, "Print the handle as JSON")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			handle.SetLogger(l)
			defer l.Sync()
		}
	}

	h, cleanup, err := load(*file, *open, *ints, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	switch {
	case *interactive:
		p := tea.NewProgram(newInteractiveModel(sourceName(*file, *open), h))
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toJSON(h)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		styled := term.IsTerminal(int(os.Stdout.Fd()))
		fmt.Print(render(sourceName(*file, *open), h, styled))
	}
}

func sourceName(file, open string) string {
	switch {
	case open != "":
		return "copy of " + open
	case file != "":
		return file
	}
	return "<stdin>"
}

// load returns the handle to display and a function that releases it.
func load(file, open, ints, out string) (*handle.Handle, func(), error) {
	if open != "" {
		return build(strings.Split(open, ","), ints, out)
	}

	var (
		data []byte
		err  error
	)
	if file == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read layout: %w", err)
	}

	h, err := handle.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode: %w", err)
	}
	// Decoded descriptor numbers belong to another process: never close them.
	return h, func() { _ = handle.Delete(h) }, nil
}

// build opens paths into a fresh handle, copies it and returns the copy.
// The original is closed and deleted before returning.
func build(paths []string, intList, out string) (*handle.Handle, func(), error) {
	payload, err := parseInts(intList)
	if err != nil {
		return nil, nil, err
	}

	src, err := handle.Create(len(paths), len(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("create: %w", err)
	}
	defer func() {
		_ = handle.Close(src)
		_ = handle.Delete(src)
	}()

	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", p, err)
		}
		// The handle owns the descriptor from here on; f must not close it.
		fd, err := dupFile(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("dup %s: %w", p, err)
		}
		if err := src.SetFd(i, fd); err != nil {
			return nil, nil, err
		}
	}
	for i, v := range payload {
		if err := src.SetInt(i, v); err != nil {
			return nil, nil, err
		}
	}

	c, err := handle.Copy(src)
	if err != nil {
		return nil, nil, fmt.Errorf("copy: %w", err)
	}
	release := func() {
		_ = handle.Close(c)
		_ = handle.Delete(c)
	}

	if out != "" {
		b, err := c.MarshalBinary()
		if err == nil {
			err = os.WriteFile(out, b, 0o644)
		}
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("write layout: %w", err)
		}
	}
	return c, release, nil
}

// dupFile hands back an independent descriptor for f, routed through a
// one-slot handle so the duplication uses the same path as Copy.
func dupFile(f *os.File) (int, error) {
	tmp, err := handle.Create(1, 0)
	if err != nil {
		return handle.InvalidFD, err
	}
	defer handle.Delete(tmp)
	if err := tmp.SetFd(0, int(f.Fd())); err != nil {
		return handle.InvalidFD, err
	}

	c, err := handle.Copy(tmp)
	if err != nil {
		return handle.InvalidFD, err
	}
	defer handle.Delete(c)
	fd, _ := c.Fd(0)
	return fd, nil
}

func parseInts(s string) ([]int32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vals := make([]int32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", p, err)
		}
		vals = append(vals, int32(v))
	}
	return vals, nil
}
