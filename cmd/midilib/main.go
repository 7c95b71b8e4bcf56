// Package main is the entry point for the midilib CLI
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/james-see/midilib/pkg/api"
	"github.com/james-see/midilib/pkg/converter"
	"github.com/james-see/midilib/pkg/smf"
	"github.com/james-see/midilib/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile   string
	demoOutput   string
	textEncoding string
	lenient      bool
	jsonOutput   bool
	verbose      bool
	demoPPQ      int16
	serverPort   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midilib",
	Short: "Read, check and write Standard MIDI Files",
	Long: `midilib parses and writes Standard MIDI Files (format 1, PPQ timing).

Files are parsed strictly: running status and system exclusive events are
rejected unless --lenient is given, in which case they are read through
gomidi and normalized.

Examples:
  midilib inspect song.mid
  midilib inspect song.mid --json
  midilib normalize song.mid --lenient -o clean.mid
  midilib convert song.mid -o song.yaml
  midilib convert song.yaml -o song.mid
  midilib demo -o demo.mid
  midilib tui
  midilib serve --port 8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input.mid>",
	Short: "Summarize the tracks of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var validateCmd = &cobra.Command{
	Use:   "validate <input.mid>...",
	Short: "Check that MIDI files parse and can be written back",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <input.mid>",
	Short: "Rewrite a MIDI file without running status",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between MIDI and YAML",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Write a one-note example file",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&textEncoding, "text-encoding", "utf8",
		"Encoding of text meta events ("+strings.Join(converter.TextEncodings(), ", ")+")")
	rootCmd.PersistentFlags().BoolVar(&lenient, "lenient", false, "Retry files using running status through gomidi")

	// inspect command
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	inspectCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every event")

	// normalize command
	normalizeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// demo command
	demoCmd.Flags().StringVarP(&demoOutput, "output", "o", "demo.mid", "Output .mid file path")
	demoCmd.Flags().Int16Var(&demoPPQ, "ppq", 480, "Pulses per quarter note")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// Add commands
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func options() converter.Options {
	return converter.Options{Lenient: lenient, TextEncoding: textEncoding}
}

func getOutputPath(input, suffix string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}

func load(input string) (*converter.Result, error) {
	if _, err := converter.TextEncoding(textEncoding); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	res, err := converter.New(options()).Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	return res, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	res, err := load(args[0])
	if err != nil {
		return err
	}
	summary := converter.Summarize(res.File)

	if jsonOutput {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintf(out, "File: %s\n", args[0])
	if res.Lenient {
		fmt.Fprintf(out, "Read leniently, %d events dropped\n", res.Dropped)
	}
	fmt.Fprint(out, summary.String())

	if verbose {
		for i, tr := range res.File.Tracks() {
			fmt.Fprintf(out, "\nTrack %d events:\n", i)
			dumpTrack(out, tr)
		}
	}
	return nil
}

// dumpTrack prints every event with its absolute tick.
func dumpTrack(w io.Writer, tr *smf.Track) {
	var tick uint64
	c := tr.Cursor()
	for {
		m, err := c.Next()
		if err != nil {
			return
		}
		if d, ok := m.(smf.Delta); ok {
			tick += uint64(d)
			continue
		}
		fmt.Fprintf(w, "  %8d  %v\n", tick, m)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, input := range args {
		res, err := load(input)
		if err == nil {
			err = res.File.Validate()
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", input, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d tracks)\n", input, res.File.TrackCount())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(args))
	}
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".normalized.mid")

	res, err := load(input)
	if err != nil {
		return err
	}
	if err := res.File.WriteFile(output); err != nil {
		return err
	}

	if res.Lenient {
		fmt.Fprintf(cmd.OutOrStdout(), "Read leniently, %d events dropped\n", res.Dropped)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Normalized %s -> %s\n", input, output)
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	conv := converter.New(options())

	fmt.Fprintf(cmd.OutOrStdout(), "Converting %s -> %s\n", input, outputFile)
	if err := conv.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Conversion complete!")
	return nil
}

// demoFile is a program change followed by a quarter-note middle C.
func demoFile(ppq int16) (*smf.File, error) {
	if ppq <= 0 {
		return nil, errors.New("ppq must be positive")
	}
	f := smf.New()
	f.PPQ = ppq

	tr := smf.NewTrack()
	tr.AddDeltaMessage(0, smf.Patch{Instrument: 0})
	tr.AddDeltaMessage(0, smf.NoteOn{Note: 60, Velocity: 100})
	tr.AddDeltaMessage(smf.Delta(ppq), smf.NoteOff{Note: 60, Velocity: 100})
	tr.Close()
	f.AddTrack(tr)
	return f, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	f, err := demoFile(demoPPQ)
	if err != nil {
		return err
	}
	if err := f.WriteFile(demoOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", demoOutput)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	if _, err := converter.TextEncoding(textEncoding); err != nil {
		return err
	}
	return tui.Run(options())
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort)
}
