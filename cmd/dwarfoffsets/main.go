// dwarfoffsets extracts class member offsets and v-tables from the DWARF
// debug info of an ELF shared object and writes them as JSON for the AMXX
// binding generator.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tmp64/amxx-offset-generator/pkg/dwarfinfo"
	"github.com/tmp64/amxx-offset-generator/pkg/extract"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

var flagsParsed bool

var rootCmd = &cobra.Command{
	Use:           "dwarfoffsets",
	Short:         "Extracts offsets from a shared object",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagsParsed = true
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().String("class-list", "", "list of classes to extract")
	rootCmd.Flags().String("so", "", "path to the .so")
	rootCmd.Flags().String("out", "", "path to output JSON")
	for _, f := range []string{"class-list", "so", "out"} {
		cobra.CheckErr(rootCmd.MarkFlagRequired(f))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		if !flagsParsed {
			fmt.Print(rootCmd.UsageString())
		}
		os.Exit(1)
	}
	// Usage requested explicitly still exits nonzero.
	if rootCmd.Flags().Changed("help") {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	soPath, _ := cmd.Flags().GetString("so")
	classListPath, _ := cmd.Flags().GetString("class-list")
	outPath, _ := cmd.Flags().GetString("out")

	banner := color.New(color.Bold)
	banner.Printf("Opening so file %s\n", soPath)

	backend, err := dwarfinfo.Open(soPath)
	if err != nil {
		return err
	}

	banner.Printf("Opening class list file %s\n", classListPath)
	classes, err := extract.ReadClassList(classListPath)
	if err != nil {
		return err
	}
	names := classes.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("- %s\n", name)
	}

	ex := &extract.Extractor{
		Backend: backend,
		Mapper:  &typegraph.Mapper{},
		Classes: classes,
		Logf: func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		},
	}
	doc, err := ex.Run()
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()
	if err := doc.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
