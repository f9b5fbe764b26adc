// Command appimg inspects and extracts the filesystem image embedded in
// an AppImage.
//
// Usage:
//
//	appimg appimage <file> [-icon] [-desktop] [-appstream] [-filter s]
//	                       [-write] [-dest dir] [-name base]
//	                       [-offset n] [-copy-permissions]
//	appimg extract  <file> [-dest dir] [-offset n] [-copy-permissions]
//
// Without -write (or -dest for extract) the tool runs in listing mode
// and only reports what it found.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mxkv/appimg"
)

func main() {
	// Optional .env keeps LOG_LEVEL and friends out of the invocation.
	_ = godotenv.Load()
	logger := newLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "appimage", "ai":
		err = runAppImage(logger, os.Args[2:])
	case "extract":
		err = runExtract(logger, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "appimg: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "appimg:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage:
  appimg appimage <file> [flags]   locate/extract well-known resources
  appimg extract  <file> [flags]   extract the whole image

Run "appimg <command> -h" for per-command flags.
`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openFlags are the flags shared by both commands.
type openFlags struct {
	offset   int64
	copyPerm bool
}

func (of *openFlags) register(fs *flag.FlagSet) {
	fs.Int64Var(&of.offset, "offset", -1, "image offset in bytes (default: derive from the ELF layout)")
	fs.BoolVar(&of.copyPerm, "copy-permissions", false, "apply the archive's permission bits to written files")
}

func (of *openFlags) options(logger *slog.Logger) []appimg.Option {
	opts := []appimg.Option{appimg.WithLogger(logger)}
	if of.offset >= 0 {
		opts = append(opts, appimg.WithOffset(uint64(of.offset)))
	}
	return opts
}

func runAppImage(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("appimage", flag.ExitOnError)
	var of openFlags
	of.register(fs)
	var (
		filter    = fs.String("filter", "", "case-insensitive substring filter for resource paths")
		icon      = fs.Bool("icon", false, "search for the application icon")
		desktop   = fs.Bool("desktop", false, "search for the desktop entry")
		appstream = fs.Bool("appstream", false, "search for the appstream manifest")
		write     = fs.Bool("write", false, "write found resources instead of listing them")
		dest      = fs.String("dest", ".", "destination directory for -write")
		name      = fs.String("name", "", "base name override for written files")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("appimage: exactly one AppImage path is required")
	}
	if !*icon && !*desktop && !*appstream {
		return errors.New("appimage: nothing to do; pass -icon, -desktop, or -appstream")
	}

	app, err := appimg.Open(fs.Arg(0), of.options(logger)...)
	if err != nil {
		return err
	}
	defer app.Close()

	var extractOpts []appimg.ExtractOption
	if *name != "" {
		extractOpts = append(extractOpts, appimg.ExtractWithName(*name))
	}
	if of.copyPerm {
		extractOpts = append(extractOpts, appimg.ExtractWithMode(true))
	}

	report := func(label string, find func(string) (*appimg.Entry, error)) error {
		entry, err := find(*filter)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Printf("No %s found.\n", label)
			return nil
		}
		if !*write {
			fmt.Printf("%s: %s\n", strings.ToUpper(label[:1])+label[1:], entry.Path)
			return nil
		}
		return app.Extract(*entry, *dest, extractOpts...)
	}

	if *desktop {
		if err := report("desktop file", app.FindDesktop); err != nil {
			return err
		}
	}
	if *icon {
		if err := report("icon", app.FindIcon); err != nil {
			return err
		}
	}
	if *appstream {
		if err := report("appstream file", app.FindAppstream); err != nil {
			return err
		}
	}
	return nil
}

func runExtract(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var of openFlags
	of.register(fs)
	dest := fs.String("dest", "", "destination directory (default: list entries without writing)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("extract: exactly one image path is required")
	}

	app, err := appimg.Open(fs.Arg(0), of.options(logger)...)
	if err != nil {
		return err
	}
	defer app.Close()

	if *dest == "" {
		for e, err := range app.Entries() {
			if err != nil {
				return err
			}
			switch e.Kind {
			case appimg.KindFile:
				fmt.Printf("%-9s %10d  %s\n", e.Kind, e.Size, e.Path)
			case appimg.KindSymlink:
				fmt.Printf("%-9s %10s  %s -> %s\n", e.Kind, "", e.Path, e.Target)
			default:
				fmt.Printf("%-9s %10s  %s\n", e.Kind, "", e.Path)
			}
		}
		return nil
	}

	var opts []appimg.ExtractOption
	if of.copyPerm {
		opts = append(opts, appimg.ExtractWithMode(true))
	}
	return app.ExtractAll(*dest, opts...)
}
