package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/citcrun/citc/internal/citclog"
	"github.com/citcrun/citc/internal/config"
	"github.com/citcrun/citc/internal/host"
	"github.com/citcrun/citc/internal/loader"
)

// Exit codes distinguish "the guest ran and returned a code" (passed
// through verbatim) from citc failing to get a guest running at all.
const (
	exitHostInitFailed = 126
	exitLoadFailed     = 127
)

func main() {
	var verbosity string

	root := &cobra.Command{
		Use:   "citc <executable>",
		Short: "citc runs unmodified 64-bit Windows executables on this host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], verbosity)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&verbosity, "verbosity", "v", "", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitHostInitFailed)
	}
}

func run(path, verbosity string) error {
	cfg := config.FromEnv()
	if verbosity != "" {
		cfg.Verbosity = citclog.ParseLevel(verbosity)
	}

	h, err := host.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "citc: %v\n", err)
		os.Exit(exitHostInitFailed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "citc: reading %s: %v\n", path, err)
		os.Exit(exitLoadFailed)
	}

	img, err := h.Boot(data)
	if err != nil {
		h.Log.Errorf("boot failed: %v", err)
		if le, ok := err.(*loader.Error); ok {
			fmt.Fprintf(os.Stderr, "citc: %s: %v\n", le.Code, le.Err)
		} else {
			fmt.Fprintf(os.Stderr, "citc: %v\n", err)
		}
		os.Exit(exitLoadFailed)
	}
	defer img.Close()

	os.Exit(int(img.Run()))
	return nil
}
