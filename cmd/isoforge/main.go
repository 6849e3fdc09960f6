// Command isoforge builds an ISO 9660 image from a source directory,
// the spec.md-driven replacement for the teacher's cmd/main.go: the
// same scan-then-build shape, wired to node.Image/fsimport/fsource and
// the ecma119+rockridge+joliet+eltorito+filesrc writer pipeline
// instead of the teacher's single iso9660.Builder.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bgrewell/usage"
	"github.com/go-logr/logr/funcr"

	"github.com/go-iso9660/isoimage/ecma119"
	"github.com/go-iso9660/isoimage/eltorito"
	"github.com/go-iso9660/isoimage/filesrc"
	"github.com/go-iso9660/isoimage/fsimport"
	"github.com/go-iso9660/isoimage/fsource"
	"github.com/go-iso9660/isoimage/joliet"
	"github.com/go-iso9660/isoimage/msgsink"
	"github.com/go-iso9660/isoimage/node"
	"github.com/go-iso9660/isoimage/pipeline"
	"github.com/go-iso9660/isoimage/rockridge"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isoforge"),
		usage.WithApplicationDescription("isoforge builds an ISO 9660 image from a source directory, with optional Rock Ridge, Joliet, and El Torito extensions."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Report every writer message instead of just failures", "", nil)
	noRockRidge := u.AddBooleanOption("", "no-rock-ridge", false, "Disable Rock Ridge POSIX extensions", "", nil)
	noJoliet := u.AddBooleanOption("", "no-joliet", false, "Disable the Joliet supplementary volume descriptor", "", nil)
	followSymlinks := u.AddBooleanOption("L", "follow-symlinks", false, "Dereference symlinks instead of storing them as such", "", nil)
	skipHidden := u.AddBooleanOption("", "skip-hidden", false, "Exclude dotfiles from the image", "", nil)

	volumeID := u.AddStringOption("V", "volume-id", "ISOIMAGE", "Primary volume identifier", "", nil)
	publisherID := u.AddStringOption("", "publisher", "", "Publisher identifier", "", nil)
	preparerID := u.AddStringOption("", "preparer", "", "Data preparer identifier", "", nil)
	applicationID := u.AddStringOption("", "application", "", "Application identifier", "", nil)
	hiddenNames := u.AddStringOption("H", "hide", "", "Comma-separated base names to hide from the ECMA-119/Joliet trees", "", nil)

	bootImage := u.AddStringOption("", "boot-image", "", "Path (within the source tree) to an El Torito boot image; enables booting", "", nil)
	bootMedia := u.AddStringOption("", "boot-media", "noemul", "Boot media emulation: noemul, floppy12, floppy144, floppy288, hd", "", nil)
	isolinux := u.AddBooleanOption("", "isolinux", false, "Patch the boot image's isolinux boot information table", "", nil)

	input := u.AddArgument(1, "input-dir", "Source directory to import", "")
	output := u.AddArgument(2, "output-iso", "Path to write the finished image", "output.iso")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		u.PrintUsage()
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		return
	}
	if *input == "" {
		u.PrintError(fmt.Errorf("input-dir is required"))
		os.Exit(1)
	}

	threshold := msgsink.Warning
	if *verbose {
		threshold = msgsink.Debug
	}
	log := funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: int(threshold)})
	sink := msgsink.New(log, threshold)

	if err := run(runConfig{
		input:          *input,
		output:         *output,
		volumeID:       *volumeID,
		publisherID:    *publisherID,
		preparerID:     *preparerID,
		applicationID:  *applicationID,
		hiddenNames:    *hiddenNames,
		rockRidge:      !*noRockRidge,
		jolietEnabled:  !*noJoliet,
		followSymlinks: *followSymlinks,
		skipHidden:     *skipHidden,
		bootImage:      *bootImage,
		bootMedia:      *bootMedia,
		isolinux:       *isolinux,
		sink:           sink,
	}); err != nil {
		sink.ReportErr(msgsink.Fatal, "isoforge", err, "build failed")
		os.Exit(1)
	}

	fmt.Println("ISO created successfully:", *output)
}

type runConfig struct {
	input         string
	output        string
	volumeID      string
	publisherID   string
	preparerID    string
	applicationID string
	hiddenNames   string

	rockRidge      bool
	jolietEnabled  bool
	followSymlinks bool
	skipHidden     bool

	bootImage string
	bootMedia string
	isolinux  bool

	sink *msgsink.Sink
}

func run(cfg runConfig) error {
	img := node.New(cfg.volumeID)
	img.Volumes.Publisher = cfg.publisherID
	img.Volumes.Preparer = cfg.preparerID
	img.Volumes.Application = cfg.applicationID
	img.Sink = cfg.sink

	fsys := fsource.NewOS(cfg.input)
	builder := fsimport.New(fsys, fsimport.Options{
		FollowSymlinks: cfg.followSymlinks,
		SkipHidden:     cfg.skipHidden,
		Excludes:       img.Excludes,
		Sink:           cfg.sink,
	})
	if err := builder.ImportDir(img.Root(), "."); err != nil {
		return fmt.Errorf("isoforge: scanning %q: %w", cfg.input, err)
	}

	hideNames(img.Root(), splitCSV(cfg.hiddenNames))

	if cfg.bootImage != "" {
		if err := wireBootCatalog(img, cfg.bootImage, cfg.bootMedia, cfg.isolinux); err != nil {
			return err
		}
	}

	reg := filesrc.NewRegistry()

	ecmaOpts := ecma119.DefaultOptions()
	ecmaOpts.Level = ecma119.Level2
	ecmaOpts.RockRidge = cfg.rockRidge
	ecmaOpts.VolumeID = cfg.volumeID
	ecmaOpts.PublisherID = cfg.publisherID
	ecmaOpts.PreparerID = cfg.preparerID
	ecmaOpts.ApplicationID = cfg.applicationID

	ecmaW, err := ecma119.NewWriter(img, ecmaOpts, reg)
	if err != nil {
		return fmt.Errorf("isoforge: building ECMA-119 tree: %w", err)
	}

	writers := []pipeline.Writer{}

	var rrW *rockridge.Writer
	if cfg.rockRidge {
		rrW = rockridge.NewWriter(ecmaW.Tree(), cfg.sink)
		ecmaW.SystemUse = rrW.SystemUse
		writers = append(writers, rrW)
	}
	writers = append(writers, ecmaW)

	var eltW *eltorito.Writer
	if img.Boot != nil {
		eltW, err = eltorito.NewWriter(ecmaW.Tree(), img, cfg.sink)
		if err != nil {
			return fmt.Errorf("isoforge: building El Torito catalog: %w", err)
		}
		ecmaW.BootContent = eltW.BootContent
		writers = append(writers, eltW)
	}

	fsW := filesrc.NewWriter(reg, cfg.sink)
	writers = append(writers, fsW)

	if cfg.jolietEnabled {
		jOpts := joliet.DefaultOptions()
		jW, err := joliet.NewWriter(img, jOpts, reg)
		if err != nil {
			return fmt.Errorf("isoforge: building Joliet tree: %w", err)
		}
		writers = append(writers, jW)
	}

	driver := pipeline.NewDriver(writers...)
	driver.Sink = cfg.sink
	if eltW != nil {
		driver.SystemArea = eltW.SystemArea
	}

	out, err := os.Create(cfg.output)
	if err != nil {
		return fmt.Errorf("isoforge: creating %q: %w", cfg.output, err)
	}
	defer out.Close()

	if err := driver.Build(img, out); err != nil {
		return fmt.Errorf("isoforge: %w", err)
	}
	return nil
}

// wireBootCatalog resolves bootImagePath against the already-imported
// tree, inserts a boot catalog placeholder at the image root, and configures
// img.Boot the way a caller driving fsimport by hand must (spec.md
// §4.6: the catalog placeholder is not something a plain directory
// walk produces on its own).
func wireBootCatalog(img *node.Image, bootImagePath, media string, isolinuxPatch bool) error {
	if _, err := img.PathToNode(bootImagePath); err != nil {
		return fmt.Errorf("isoforge: resolving boot image %q: %w", bootImagePath, err)
	}

	catalogName := "boot.catalog"
	if err := img.AddNode(img.Root(), node.NewBootPlaceholder(catalogName)); err != nil {
		return fmt.Errorf("isoforge: inserting boot catalog placeholder: %w", err)
	}

	mediaType, err := parseBootMedia(media)
	if err != nil {
		return err
	}

	img.Boot = &node.BootCatalog{
		BootImagePath:   bootImagePath,
		CatalogNodePath: catalogName,
		Isolinux:        isolinuxPatch,
		MediaType:       mediaType,
		Bootable:        true,
	}
	return nil
}

func parseBootMedia(media string) (node.BootMediaType, error) {
	switch media {
	case "", "noemul":
		return node.BootNoEmulation, nil
	case "floppy12":
		return node.BootFloppy12, nil
	case "floppy144":
		return node.BootFloppy144, nil
	case "floppy288":
		return node.BootFloppy288, nil
	case "hd":
		return node.BootHardDisk, nil
	default:
		return 0, fmt.Errorf("isoforge: unknown --boot-media %q", media)
	}
}

// hideNames marks every node whose base name appears in names hidden
// from both the ECMA-119 and Joliet trees, generalizing the teacher's
// MarkFileNamesAsHidden to the logical tree's HideMask instead of a
// flat fileEntry slice.
func hideNames(root *node.Node, names []string) {
	if len(names) == 0 {
		return
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	var walk func(n *node.Node)
	walk = func(n *node.Node) {
		d := n.AsDir()
		if d == nil {
			return
		}
		for _, c := range d.Children() {
			if set[c.Name] {
				c.Hide |= node.HideECMA119 | node.HideJoliet
			}
			walk(c)
		}
	}
	walk(root)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
