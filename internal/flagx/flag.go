// Package flagx pre-filters process arguments so that several independent
// flag sets can parse the same command line.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigFileFlags are the names accepted for the JSON config file path.
var ConfigFileFlags = []string{"-c", "-config"}

// FilterArgs keeps only the flags named in allowedFlags together with their
// values. Both "-name value" and "-name=value" forms are recognised; a value
// is only consumed when it does not start with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = true
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, hasValue := strings.Cut(arg, "="); hasValue && strings.HasPrefix(arg, "-") {
			if allowed[name] {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !allowed[arg] {
			continue
		}
		filtered = append(filtered, arg)
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			filtered = append(filtered, args[next])
			i = next
		}
	}
	return filtered
}

// JsonConfigFlags returns the config file path given on the process command
// line, or "" when none was given.
func JsonConfigFlags() string {
	return JsonConfigPath(os.Args[1:])
}

// JsonConfigPath returns the value of -c / -config in args. Every other
// argument is ignored.
func JsonConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	fs.StringVar(&path, "config", "", "path to the JSON config file")
	fs.StringVar(&path, "c", "", "path to the JSON config file (shorthand)")
	_ = fs.Parse(FilterArgs(args, ConfigFileFlags))

	return path
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
