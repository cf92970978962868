// Command nanovm loads and executes NanoVM object images.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/RDMachinery/nanovm/image"
	"github.com/RDMachinery/nanovm/vm"
)

const version = "0.5.2"

func main() {
	// glog warns "logging before flag.Parse" the first time it's used
	// unless flag.CommandLine has been parsed at least once. Parse an
	// empty argument list rather than os.Args: the real CLI flags below
	// belong to cobra/pflag, and letting the stdlib flag package loose
	// on os.Args would fight cobra over them.
	_ = flag.CommandLine.Parse(nil)
	defer glog.Flush()

	var debug bool
	var verbose int

	run := func(cmd *cobra.Command, args []string) error {
		return runImage(args[0], debug)
	}

	rootCmd := &cobra.Command{
		Use:     "nanovm <image.bin>",
		Short:   "NanoVM virtual machine",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flag.Set("v", strconv.Itoa(verbose))
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "launch the interactive single-step debugger instead of free-running")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "glog verbosity level")

	runCmd := &cobra.Command{
		Use:   "run <image.bin>",
		Short: "Run an object image",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("%v", err)
		os.Exit(1)
	}
}

func runImage(path string, debug bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	img, err := image.Decode(raw)
	if err != nil {
		return err
	}
	glog.V(1).Infof("loaded %d bytes at origin 0x%04X from %s", len(img.Program), img.Origin, path)

	state, err := vm.Load(img)
	if err != nil {
		return err
	}
	m := vm.New(state, vm.NewPorts(os.Stdin, os.Stdout))

	if debug {
		_, err := tea.NewProgram(vm.NewDebugModel(m)).Run()
		return err
	}

	if err := m.Run(); err != nil {
		return err
	}
	glog.Infof("halted after %d cycles, %s elapsed", state.Cycles, m.Elapsed)
	return nil
}
