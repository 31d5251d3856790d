// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ctf "github.com/efficios/ctf-go"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	noDelta  bool
	names    string
	listOnly bool
)

// openTrace parses one trace directory's metadata and opens stream_<i>
// for each stream class i that has such a file next to it.
func openTrace(dir string) (*ctf.ParsedMetadata, []*ctf.ReaderStream, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata"))
	if err != nil {
		return nil, nil, err
	}
	parsed, err := ctf.ParseMetadata(data)
	if err != nil {
		return nil, nil, err
	}

	reader := ctf.NewReader(parsed.Trace, nil)
	var streams []*ctf.ReaderStream
	for i, sc := range parsed.Trace.StreamClasses() {
		path := filepath.Join(dir, fmt.Sprintf("stream_%d", i))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rs, err := reader.OpenStream(path, sc)
		if err != nil {
			for _, open := range streams {
				open.Close()
			}
			return nil, nil, err
		}
		streams = append(streams, rs)
	}
	return parsed, streams, nil
}

// renderField renders one definition subtree as "name = value" text.
func renderField(def ctf.Definition) string {
	switch v := def.(type) {
	case *ctf.IntDef:
		return fmt.Sprintf("%d", v.Int())
	case *ctf.FloatDef:
		return fmt.Sprintf("%g", v.Value())
	case *ctf.EnumDef:
		labels := v.Labels()
		if len(labels) > 0 {
			return fmt.Sprintf("%s (%d)", labels[0], v.Value())
		}
		return fmt.Sprintf("%d", v.Value())
	case *ctf.StringDef:
		return fmt.Sprintf("%q", v.Value())
	case *ctf.StructDef:
		parts := make([]string, 0, len(v.Children()))
		for _, c := range v.Children() {
			parts = append(parts, fmt.Sprintf("%s = %s", c.Name(), renderField(c)))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case *ctf.ArrayDef:
		if v.IsChar() {
			return fmt.Sprintf("%q", v.Bytes())
		}
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts = append(parts, renderField(v.Element(i)))
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	case *ctf.VariantDef:
		opt, err := v.CurrentOption()
		if err != nil {
			return "<unresolved>"
		}
		return fmt.Sprintf("%s = %s", v.SelectedLabel(), renderField(opt))
	default:
		return "<?>"
	}
}

func printEvent(ev *ctf.Event, lastNs *int64) {
	line := ev.Class().Name()
	if snap := ev.ClockSnapshot(); snap != nil {
		ns := snap.NanosFromOrigin()
		if noDelta || *lastNs < 0 {
			line = fmt.Sprintf("[%d] %s", ns, line)
		} else {
			line = fmt.Sprintf("[%d] (+%d) %s", ns, ns-*lastNs, line)
		}
		*lastNs = ns
	}
	if payload := ev.Payload(); payload != nil {
		line += ": " + renderField(payload)
	}
	fmt.Println(line)
}

func dumpTraces(cmd *cobra.Command, args []string) error {
	root := args[0]
	dirs, err := ctf.DiscoverTraces(root)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no trace (directory containing a metadata file) found under %s", root)
	}

	wantNames := map[string]bool{}
	for _, n := range strings.Split(names, ",") {
		if n != "" {
			wantNames[n] = true
		}
	}

	collection := ctf.NewTraceCollection(nil)
	defer collection.Close()
	for _, dir := range dirs {
		parsed, streams, err := openTrace(dir)
		if err != nil {
			return fmt.Errorf("opening trace %s: %w", dir, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "trace %s: uuid %s, %d stream class(es)\n",
				dir, parsed.Trace.UUID(), len(parsed.Trace.StreamClasses()))
		}
		if listOnly {
			for _, sc := range parsed.Trace.StreamClasses() {
				for _, ec := range sc.EventClasses() {
					fmt.Printf("%s (id %d)\n", ec.Name(), ec.ID())
				}
			}
			for _, rs := range streams {
				rs.Close()
			}
			continue
		}
		for _, rs := range streams {
			collection.AddStream(rs)
		}
	}
	if listOnly {
		return nil
	}

	lastNs := int64(-1)
	for {
		ev, err := collection.Next()
		if err != nil {
			if ce, ok := err.(*ctf.Error); ok && ce.Kind == ctf.KindUnderrun {
				return nil
			}
			return err
		}
		if len(wantNames) > 0 && !wantNames[ev.Class().Name()] {
			continue
		}
		printEvent(ev, &lastNs)
	}
}

func metadataText(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(filepath.Join(args[0], "metadata"))
	if err != nil {
		return err
	}
	parsed, err := ctf.ParseMetadata(data)
	if err != nil {
		return err
	}
	// Re-emit in raw form so packetized metadata prints as plain TSDL.
	return ctf.EmitMetadata(os.Stdout, parsed.Trace, false)
}

func main() {

	var rootCmd = &cobra.Command{
		Use:   "ctfdump",
		Short: "A Common Trace Format reader",
		Long:  "Reads CTF trace directories and pretty-prints their events in timestamp order",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dump the events of every trace under a directory",
		Long:  "Walks INPUT for trace directories and prints their events merged by timestamp",
		Args:  cobra.MinimumNArgs(1),
		RunE:  dumpTraces,
	}

	var metadataCmd = &cobra.Command{
		Use:   "metadata",
		Short: "Print a trace's metadata as plain TSDL",
		Long:  "Parses a trace directory's metadata (raw or packetized) and re-emits it as raw TSDL",
		Args:  cobra.MinimumNArgs(1),
		RunE:  metadataText,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(metadataCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVarP(&noDelta, "no-delta", "", false, "print absolute timestamps only, no deltas")
	dumpCmd.Flags().StringVarP(&names, "names", "n", "", "comma-separated event names to print (default all)")
	dumpCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "list event classes instead of dumping events")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

}
