package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/1broseidon/autumn/internal/ipc"
)

type evaluator interface {
	Eval(source string) (interface{}, error)
}

var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func runEval(args []string) int {
	fs := newFlagSet("eval", "eval [--file PATH] [SOURCE]",
		"Evaluate JavaScript in the daemon's script runtime.\n\n"+
			"Without SOURCE, a piped stdin is evaluated as one script and an\n"+
			"interactive terminal starts a line-by-line prompt.")
	file := fs.String("file", "", "Evaluate the contents of a file")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	client := ipc.NewClient()
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			return fail(err)
		}
		return evalOnce(client, string(data))
	case fs.NArg() > 0:
		return evalOnce(client, strings.Join(fs.Args(), " "))
	case stdinIsTerminal():
		return evalInteractive(client, os.Stdin)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fail(err)
		}
		return evalOnce(client, string(data))
	}
}

func evalOnce(ev evaluator, source string) int {
	result, err := ev.Eval(source)
	if err != nil {
		return fail(err)
	}
	printResult(result)
	return 0
}

// evalInteractive evaluates one line at a time until EOF or ".exit".
// Errors are printed and the prompt continues.
func evalInteractive(ev evaluator, in io.Reader) int {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(stdout, "autumn> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			break
		}
		result, err := ev.Eval(line)
		if err != nil {
			fmt.Fprintln(stderr, err)
			continue
		}
		printResult(result)
	}
	if err := scanner.Err(); err != nil {
		return fail(err)
	}
	return 0
}

func printResult(v any) {
	switch x := v.(type) {
	case nil:
		fmt.Fprintln(stdout, "undefined")
	case string:
		fmt.Fprintln(stdout, x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			fmt.Fprintln(stdout, x)
			return
		}
		fmt.Fprintln(stdout, string(data))
	}
}
