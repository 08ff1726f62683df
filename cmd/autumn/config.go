package main

import (
	"fmt"
	"io"

	"github.com/1broseidon/autumn/internal/config"
)

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  autumn config validate [--path PATH]")
	fmt.Fprintln(w, "  autumn config print [--path PATH] [--defaults]")
	fmt.Fprintln(w, "  autumn config explain [--path PATH] <yaml.path>")
	fmt.Fprintln(w, "  autumn config path")
}

func runConfig(args []string) int {
	if len(args) == 0 {
		printConfigUsage(stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage(stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		fs := newFlagSet("validate", "config validate [--path PATH]", "Load and validate the configuration.")
		path := fs.String("path", "", "Config file path (default: ~/.config/autumn/config.yaml)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if _, err := loadConfig(*path); err != nil {
			return fail(err)
		}
		fmt.Fprintln(stdout, "config: ok")
		return 0

	case "print":
		fs := newFlagSet("print", "config print [--path PATH] [--defaults]", "Print the effective configuration as YAML.")
		path := fs.String("path", "", "Config file path (default: ~/.config/autumn/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				return fail(err)
			}
			cfg = res.Config
			if res.File != "" {
				fmt.Fprintf(stdout, "# file: %s\n", res.File)
			}
		}
		data, err := cfg.Marshal()
		if err != nil {
			return fail(err)
		}
		fmt.Fprint(stdout, string(data))
		return 0

	case "explain":
		fs := newFlagSet("explain", "config explain [--path PATH] <yaml.path>", "Show a config value and where it was set.")
		path := fs.String("path", "", "Config file path (default: ~/.config/autumn/config.yaml)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			return fail(err)
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "path: %s\n", queryPath)
		fmt.Fprintf(stdout, "source: %s\n", config.FormatSource(src))
		fmt.Fprintf(stdout, "value: %s\n", config.FormatValue(value))
		return 0

	case "path":
		p, err := config.DefaultConfigPath()
		if err != nil {
			return fail(err)
		}
		fmt.Fprintln(stdout, p)
		return 0

	default:
		fmt.Fprintf(stderr, "Unknown config subcommand: %s\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}
