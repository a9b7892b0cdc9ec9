// Package flagx lets every config package parse just the flags it owns:
// arguments are pre-filtered, so flags registered by other packages never
// reach flag.Parse and cannot trip its unknown-flag error.
package flagx

import (
	"flag"
	"strings"
)

// Select keeps only the named flags, and their values, from args. Both the
// "-name value" and "--name=value" forms are recognized; everything else,
// positionals included, is dropped.
func Select(args []string, names ...string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	kept := make([]string, 0, len(args))
	skip := false
	for i, arg := range args {
		if skip {
			skip = false
			continue
		}

		if name, _, hasValue := strings.Cut(arg, "="); hasValue && strings.HasPrefix(name, "-") {
			if want[name] {
				kept = append(kept, arg)
			}
			continue
		}

		if !want[arg] {
			continue
		}
		kept = append(kept, arg)
		// the next argument is this flag's value unless it is another flag
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			kept = append(kept, args[i+1])
			skip = true
		}
	}
	return kept
}

// ConfigFilePath extracts the value of the -c/-config flags from args,
// usually os.Args[1:]. Returns "" when neither is present.
func ConfigFilePath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(Select(args, "-c", "-config"))

	return path
}
