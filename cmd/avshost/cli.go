package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/IronFox/AVS-sub001/internal/dispatcher"
	"github.com/IronFox/AVS-sub001/internal/integrity"
)

var errInputClosed = errors.New("input closed")

// maxLineBytes bounds a single command line; spawn definitions are the
// largest.
const maxLineBytes = 1 << 20

// parseLine splits `:CMD: ["arg", ...]` into an event. The args member is
// optional.
func parseLine(line string) (dispatcher.Event, error) {
	line = strings.TrimSpace(line)
	command, rest, _ := strings.Cut(line, " ")
	if !strings.HasPrefix(command, ":") || !strings.HasSuffix(command, ":") || len(command) < 3 {
		return dispatcher.Event{}, fmt.Errorf("malformed command %q", command)
	}

	e := dispatcher.Event{Command: command}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return e, nil
	}
	if !gjson.Valid(rest) {
		return e, fmt.Errorf("%s: args are not valid JSON", command)
	}
	args := gjson.Parse(rest)
	if !args.IsArray() {
		return e, fmt.Errorf("%s: args must be a JSON array", command)
	}
	for _, a := range args.Array() {
		if a.Type == gjson.String {
			e.Args = append(e.Args, a.String())
		} else {
			e.Args = append(e.Args, a.Raw)
		}
	}
	return e, nil
}

// serve reads commands from in, one per line, and answers each on out with
// "OK <result>" or "ERR <message>". It returns errInputClosed at end of
// input and nil when ctx is done.
func serve(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("reading commands: %w", err)
			}
			return errInputClosed
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			reply(out, handleLine(d, line))
		}
	}
}

type response struct {
	result any
	err    error
}

func handleLine(d *dispatcher.Dispatcher, line string) response {
	e, err := parseLine(line)
	if err != nil {
		return response{err: err}
	}
	result, err := d.Dispatch(e)
	return response{result: result, err: err}
}

func reply(out io.Writer, r response) {
	switch {
	case r.err != nil:
		fmt.Fprintf(out, "ERR %s\n", oneLine(r.err.Error()))
	case r.result == nil:
		fmt.Fprintln(out, "OK")
	default:
		fmt.Fprintf(out, "OK %s\n", oneLine(fmt.Sprint(r.result)))
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// verifyFiles checks the integrity envelope of each file and prints OK or
// CORRUPT per file. The exit code is 1 if any file fails.
func verifyFiles(out io.Writer, paths []string) int {
	if len(paths) == 0 {
		fmt.Fprintln(out, "usage: avshost verify <file>...")
		return 2
	}
	code := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "%s: ERROR %v\n", path, err)
			code = 1
			continue
		}
		payload, err := integrity.Open(data)
		if err != nil {
			fmt.Fprintf(out, "%s: CORRUPT %v\n", path, err)
			code = 1
			continue
		}
		fmt.Fprintf(out, "%s: OK (%s payload, %s)\n", path,
			humanize.Bytes(uint64(len(payload))), integrity.Digest(payload)[:12])
	}
	return code
}
