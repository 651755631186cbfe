// Package main is index-doctor: it inspects quote indexes for damage and builds
// fresh ones from a quote file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lensvol/qotd/src/strfile"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "index-doctor",
		Short:         "Inspect and build quote index files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInspectCmd(out), newBuildCmd(out))
	return root
}

func newInspectCmd(out io.Writer) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Check FILE.dat against FILE and print its header.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, err := inspect(out, args[0], verbose)
			if err != nil {
				return err
			}
			if len(issues) > 0 {
				return errors.Errorf("%d problem(s) found", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every offset")
	return cmd
}

// inspect prints the header of path's index and lists every problem found:
// offsets past the end of the quote file, offsets out of order and a longest
// quote that does not fit the file.
func inspect(out io.Writer, path string, verbose bool) ([]string, error) {
	indexPath := path + strfile.IndexSuffix
	h, err := strfile.ReadHeader(indexPath)
	if err != nil {
		return nil, errors.Wrap(err, "read index failed")
	}

	fmt.Fprintf(out, "Index: %s\n", indexPath)
	fmt.Fprintf(out, "--------------------------------------------\n")
	if err := h.Describe(out); err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat quote file failed")
	}
	size := fi.Size()
	if verbose {
		fmt.Fprintf(out, "File size:\t%d\n", size)
	}

	var issues []string
	if h.Version != strfile.DefaultVersion {
		issues = append(issues, fmt.Sprintf("unexpected version %d", h.Version))
	}
	if int64(h.Longest) > size {
		issues = append(issues, fmt.Sprintf("longest quote %d exceeds file size %d", h.Longest, size))
	}
	// Offsets of an unshuffled, unsorted index follow file order.
	sequential := !h.Flags.IsRandom() && !h.Flags.IsOrdered()
	for i, off := range h.Offsets {
		if verbose {
			fmt.Fprintf(out, "  [%d] %d\n", i, off)
		}
		if int64(off) > size {
			issues = append(issues, fmt.Sprintf("offset %d of quote %d is past end of file (%d)", off, i, size))
		}
		if sequential && i > 0 && off <= h.Offsets[i-1] {
			issues = append(issues, fmt.Sprintf("offset %d of quote %d is not after the previous one", off, i))
		}
	}

	if len(issues) == 0 {
		fmt.Fprintf(out, "Status: OK\n")
	} else {
		fmt.Fprintf(out, "Status: %d problem(s)\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
		fmt.Fprintf(out, "Run `index-doctor build %s` to rebuild the index.\n", path)
	}
	return issues, nil
}

func newBuildCmd(out io.Writer) *cobra.Command {
	var (
		delim                  string
		random, ordered, rot13 bool
	)
	cmd := &cobra.Command{
		Use:   "build FILE",
		Short: "Write FILE.dat for the quote file FILE.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(delim) != 1 {
				return errors.Errorf("delimiter must be a single byte, got %q", delim)
			}
			var flags strfile.Flags
			if random {
				flags |= strfile.FlagRandom
			}
			if ordered {
				flags |= strfile.FlagOrdered
			}
			if rot13 {
				flags |= strfile.FlagRotated
			}
			return build(out, args[0], delim[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&delim, "delim", string(strfile.DefaultDelim), "delimiter character")
	f.BoolVar(&random, "random", false, "shuffle the offset table")
	f.BoolVar(&ordered, "ordered", false, "sort the offset table alphabetically")
	f.BoolVar(&rot13, "rot13", false, "mark the quotes as rot13-encoded")
	return cmd
}

func build(out io.Writer, path string, delim byte, flags strfile.Flags) error {
	h, err := strfile.BuildFile(path, delim, flags)
	if err != nil {
		return errors.Wrap(err, "build index failed")
	}
	indexPath := path + strfile.IndexSuffix
	if err := strfile.WriteIndex(indexPath, h); err != nil {
		return errors.Wrap(err, "write index failed")
	}
	logger.WithFields(logrus.Fields{
		"index": indexPath,
		"count": h.NumStrings,
	}).Debug("index written")
	fmt.Fprintf(out, "\"%s\" created\n", indexPath)
	return h.Describe(out)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logger.Fatal(err)
	}
}
