package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"fiberengine/classfile"
	"fiberengine/interpreter"
	"fiberengine/runtime"

	"github.com/spf13/cobra"
)

var (
	concurrencyHint int
	verbose         bool
	debugFrames     bool
	traceMethod     string
	showStats       bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "fiberengine <classfile>",
		Short:   "A cooperative fiber scheduler hosting a minimal JVM bytecode interpreter",
		Version: version(),
		Args:    cobra.ExactArgs(1),
		RunE:    runClassFile,
	}

	root.Flags().IntVar(&concurrencyHint, "main-context-concurrency-hint", 1,
		"advisory hint for how many OS threads the executor may use (informational; the scheduler is single-threaded regardless)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "print executed instructions")
	root.Flags().BoolVar(&debugFrames, "debug", false, "enhanced frame debugging - show locals and stack")
	root.Flags().StringVar(&traceMethod, "trace", "", "trace calls to a method (e.g. --trace fibonacci)")
	root.Flags().BoolVar(&showStats, "stats", false, "show heap statistics after execution")

	root.SetVersionTemplate("fiberengine {{.Version}}\n")
	return root
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// modulePath reads EMILUA_PATH, an OS-specific-separator list of module
// search roots, mirroring the original interpreter's plugin/module search
// path configuration surface.
func modulePath() []string {
	raw := os.Getenv("EMILUA_PATH")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, string(os.PathListSeparator))
}

// colorsEnabled parses EMILUA_COLORS against the boolean vocabulary the
// original CLI recognized.
func colorsEnabled() bool {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("EMILUA_COLORS")))
	switch v {
	case "ON", "1", "YES", "TRUE":
		return true
	case "OFF", "0", "NO", "FALSE", "":
		return false
	default:
		return false
	}
}

// logLevel parses EMILUA_LOG_LEVELS as an integer verbosity level; 0 if
// unset or unparsable.
func logLevel() int {
	raw := os.Getenv("EMILUA_LOG_LEVELS")
	if raw == "" {
		return 0
	}
	lvl, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return lvl
}

func runClassFile(cmd *cobra.Command, args []string) error {
	classFilePath := args[0]

	cf, err := classfile.ParseFile(classFilePath)
	if err != nil {
		return fmt.Errorf("loading class file: %w", err)
	}

	if logLevel() > 0 {
		fmt.Fprintf(os.Stderr, "[fiberengine] loaded %s (Java %d), module path=%v, colors=%v, concurrency hint=%d\n",
			cf.ClassName(), cf.MajorVersion-44, modulePath(), colorsEnabled(), concurrencyHint)
	}

	fmt.Printf("Loaded class: %s (Java %d)\n", cf.ClassName(), cf.MajorVersion-44)
	fmt.Println("---")

	jvm := runtime.NewJVM()
	defer jvm.Shutdown()

	var execErr error
	_, spawnErr := jvm.SpawnThread(func(thread *runtime.Thread) ([]interface{}, error) {
		interp := interpreter.NewInterpreterWithThread(verbose, thread)
		if debugFrames {
			interp.SetDebug(true)
			fmt.Println("Debug mode enabled - showing frame state")
			fmt.Println("---")
		}
		if traceMethod != "" {
			interp.SetTrace(traceMethod)
			fmt.Printf("Tracing method: %s\n", traceMethod)
			fmt.Println("---")
		}
		execErr = interp.Execute(cf)
		return nil, execErr
	})
	if spawnErr != nil {
		return fmt.Errorf("spawning main fiber: %w", spawnErr)
	}

	// The main fiber runs to completion, and any fibers/green threads it
	// spawned, before the VM drains: wait for the whole run to quiesce
	// rather than just the one call to Execute.
	<-jvm.VM().Drained()

	if execErr != nil {
		return fmt.Errorf("execution error: %w", execErr)
	}
	if code := jvm.VM().ExitCode(); code != 0 {
		os.Exit(code)
	}

	fmt.Println("---")
	fmt.Println("Execution completed.")

	if showStats {
		stats := jvm.GetHeap().Stats()
		fmt.Println("---")
		fmt.Println("Heap Statistics:")
		fmt.Printf("  Allocations:  %d\n", stats.AllocCount)
		fmt.Printf("  Freed:        %d\n", stats.FreeCount)
		fmt.Printf("  Live Objects: %d\n", stats.LiveObjects)
		fmt.Printf("  Heap Size:    %d bytes\n", stats.TotalBytes)
		fmt.Printf("  GC Runs:      %d\n", stats.GCRuns)
	}
	return nil
}
