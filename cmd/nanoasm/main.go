// Command nanoasm assembles NanoVM source files into object images.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/RDMachinery/nanovm/asm"
	"github.com/RDMachinery/nanovm/image"
)

const version = "0.5.2"

func main() {
	// glog warns "logging before flag.Parse" the first time it's used
	// unless flag.CommandLine has been parsed at least once. Parse an
	// empty argument list rather than os.Args: the real CLI flags below
	// belong to cobra/pflag, and letting the stdlib flag package loose
	// on os.Args would fight cobra over them.
	_ = flag.CommandLine.Parse(nil)
	// glog copies only ERROR and above to stderr by default; lower the
	// threshold so the ORG low-page warning reaches stderr as well.
	_ = flag.Set("stderrthreshold", "WARNING")
	defer glog.Flush()

	var compatBinaryLiteral bool
	var verbose int

	run := func(cmd *cobra.Command, args []string) error {
		return assembleFile(args[0], args[1], asm.Options{CompatBinaryLiteral: compatBinaryLiteral})
	}

	rootCmd := &cobra.Command{
		Use:     "nanoasm <source.asm> <out.bin>",
		Short:   "NanoVM assembler",
		Version: version,
		Args:    cobra.ExactArgs(2),
		RunE:    run,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flag.Set("v", strconv.Itoa(verbose))
		},
	}
	rootCmd.PersistentFlags().BoolVar(&compatBinaryLiteral, "compat-binary-literal", false,
		"parse '%' operands as natural base-2 literals instead of reproducing the original tool's decimal-digits-as-bits bug")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "glog verbosity level")

	assembleCmd := &cobra.Command{
		Use:   "assemble <source.asm> <out.bin>",
		Short: "Assemble a source file into an object image",
		Args:  cobra.ExactArgs(2),
		RunE:  run,
	}
	rootCmd.AddCommand(assembleCmd)

	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("%v", err)
		os.Exit(1)
	}
}

func assembleFile(srcPath, outPath string, opts asm.Options) error {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcPath, err)
	}

	img, warnings, err := asm.Assemble(src, opts)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		glog.Warning(w)
	}

	if err := os.WriteFile(outPath, image.Encode(img), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	glog.V(1).Infof("assembled %d bytes at origin 0x%04X into %s", len(img.Program), img.Origin, outPath)
	return nil
}
