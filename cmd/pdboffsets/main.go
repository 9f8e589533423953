// pdboffsets extracts class member offsets and v-tables from a Microsoft
// PDB file and writes them as JSON for the AMXX binding generator.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tmp64/amxx-offset-generator/pkg/extract"
	"github.com/tmp64/amxx-offset-generator/pkg/pdb"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

var flagsParsed bool

var rootCmd = &cobra.Command{
	Use:           "pdboffsets",
	Short:         "Extracts offsets from a PDB",
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
	rootCmd.Flags().String("pdb", "", "path to the PDB")
	rootCmd.Flags().String("out", "", "path to output JSON")
	for _, f := range []string{"class-list", "pdb", "out"} {
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
	pdbPath, _ := cmd.Flags().GetString("pdb")
	classListPath, _ := cmd.Flags().GetString("class-list")
	outPath, _ := cmd.Flags().GetString("out")

	banner := color.New(color.Bold)
	banner.Printf("Opening PDB file %s\n", pdbPath)

	backend, err := pdb.Open(pdbPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	info := backend.Info()
	fmt.Printf("Version %d, signature %d, age %d, GUID %s\n",
		info.Version, info.Signature, info.Age, info.GUIDString())
	fmt.Printf("Machine: %s\n", backend.Machine())

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
		Mapper:  &typegraph.Mapper{StringInternNames: true},
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
