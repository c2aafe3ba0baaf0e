package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/store/postgres"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and publish face galleries",
}

var galleryInfoCmd = &cobra.Command{
	Use:   "info [snapshot]",
	Short: "Summarise a gallery",
	Long: `Summarise the gallery in the given snapshot file, or the configured
gallery source (GALLERY_SOURCE) when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGalleryInfo,
}

var galleryConflictsCmd = &cobra.Command{
	Use:   "conflicts [snapshot]",
	Short: "List entries of different members that are within tolerance of each other",
	Long: `List pairs of gallery entries that belong to different members but are
close enough to both match the same face. The earlier entry always wins, so the
later member is never recognised near such a pair.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGalleryConflicts,
}

var galleryPushCmd = &cobra.Command{
	Use:   "push <snapshot>",
	Short: "Replace the PostgreSQL gallery with a snapshot file",
	Long: `Replace the gallery stored in PostgreSQL with the contents of a snapshot
file. Entry order is preserved. Requires DATABASE_URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryPush,
}

var galleryConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a snapshot between JSON and gob",
	Args:  cobra.ExactArgs(2),
	RunE:  runGalleryConvert,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryInfoCmd, galleryConflictsCmd, galleryPushCmd, galleryConvertCmd)

	galleryInfoCmd.Flags().Bool("json", false, "Output as JSON")
	galleryConflictsCmd.Flags().Bool("json", false, "Output as JSON")
	galleryConflictsCmd.Flags().Float64("tolerance", 0, "Match tolerance (defaults to GALLERY_TOLERANCE)")
	galleryConvertCmd.Flags().String("format", "", "Output format: json or gob (defaults to the output extension)")
}

// loadGallery reads a snapshot file, or the configured source without args.
func loadGallery(ctx context.Context, args []string) (*gallery.Gallery, string, float64, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, "", 0, err
	}

	if len(args) == 1 {
		g, err := gallery.LoadFile(args[0])
		return g, "file:" + args[0], cfg.Gallery.Tolerance, err
	}

	b := newBackends(cfg, log)
	defer func() { _ = b.Close() }()
	src, err := b.gallerySource(ctx)
	if err != nil {
		return nil, "", 0, err
	}
	g, err := src.Load(ctx)
	return g, src.Describe(), cfg.Gallery.Tolerance, err
}

func runGalleryInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	g, source, tolerance, err := loadGallery(ctx, args)
	if err != nil {
		return err
	}
	identities := g.Identities()

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"source":     source,
			"entries":    g.Len(),
			"dimension":  g.Dim(),
			"tolerance":  tolerance,
			"identities": identities,
		})
	}

	fmt.Printf("Source:     %s\n", source)
	fmt.Printf("Entries:    %d\n", g.Len())
	fmt.Printf("Dimension:  %d\n", g.Dim())
	fmt.Printf("Members:    %d\n", len(identities))
	fmt.Printf("Tolerance:  %.2f\n", tolerance)

	if len(identities) == 0 {
		return nil
	}
	keys := make([]string, 0, len(identities))
	for k := range identities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tENTRIES")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, identities[k])
	}
	return w.Flush()
}

func runGalleryConflicts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	g, _, tolerance, err := loadGallery(ctx, args)
	if err != nil {
		return err
	}
	if t := mustGetFloat64(cmd, "tolerance"); t > 0 {
		tolerance = t
	}

	conflicts := gallery.FindConflicts(g, tolerance)

	if mustGetBool(cmd, "json") {
		if conflicts == nil {
			conflicts = []gallery.Conflict{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(conflicts)
	}

	if len(conflicts) == 0 {
		fmt.Printf("No conflicting entries within %.2f\n", tolerance)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tKEY\tSHADOWS ENTRY\tKEY\tDISTANCE")
	for _, c := range conflicts {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.4f\n", c.First, c.FirstKey, c.Second, c.SecondKey, c.Distance)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d conflicting pairs within %.2f\n", len(conflicts), tolerance)
	return nil
}

func runGalleryPush(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	g, err := gallery.LoadFile(args[0])
	if err != nil {
		return err
	}
	if g.Len() == 0 {
		return fmt.Errorf("%s holds no entries", args[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	b := newBackends(cfg, log)
	defer func() { _ = b.Close() }()
	pool, err := b.postgres(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(g.Len(),
		progressbar.OptionSetDescription("Pushing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("entries"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	start := time.Now()
	err = postgres.NewGallerySource(pool).Replace(ctx, g, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("\nPushed %d entries for %d members in %s\n", g.Len(), len(g.Identities()), time.Since(start).Round(time.Millisecond))
	return nil
}

func runGalleryConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	format := gallery.FormatForPath(out)
	if f := mustGetString(cmd, "format"); f != "" {
		parsed, err := gallery.ParseFormat(f)
		if err != nil {
			return err
		}
		format = parsed
	}

	g, err := gallery.LoadFile(in)
	if err != nil {
		return err
	}
	if err := gallery.SaveFile(out, g, format); err != nil {
		return err
	}
	fmt.Printf("Wrote %d entries to %s (%s)\n", g.Len(), out, format)
	return nil
}
