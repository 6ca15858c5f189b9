package commands

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/discread/pkg/media"
	"github.com/marmos91/discread/pkg/readahead"
)

var (
	dumpLSN   uint32
	dumpCount uint32
	dumpMode  string
	dumpRaw   bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Read sectors from an image and print them",
	Long: `Read one or more sectors through the synchronous direct-read path and
print them as a hex dump, or write the raw bytes to stdout with --raw.

Examples:
  discread dump --lsn 16 game.iso
  discread dump --lsn 16 --count 4 --mode 2352 game.iso
  discread dump --lsn 0 --raw game.iso > sector0.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().Uint32Var(&dumpLSN, "lsn", 0, "first logical sector number to read")
	dumpCmd.Flags().Uint32Var(&dumpCount, "count", 1, "number of sectors to read")
	dumpCmd.Flags().StringVar(&dumpMode, "mode", "2048", "read mode: 2048, 2328, 2340 or 2352")
	dumpCmd.Flags().BoolVar(&dumpRaw, "raw", false, "write raw bytes to stdout instead of a hex dump")
}

// parseMode maps the --mode flag to a media.ReadMode.
func parseMode(s string) (media.ReadMode, error) {
	switch s {
	case "2048":
		return media.Mode2048, nil
	case "2328":
		return media.Mode2328, nil
	case "2340":
		return media.Mode2340, nil
	case "2352":
		return media.Mode2352, nil
	default:
		return 0, fmt.Errorf("unknown read mode %q", s)
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := parseMode(dumpMode)
	if err != nil {
		return err
	}

	src, err := media.NewImageSource(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sub, err := readahead.New(src, readahead.Options{
		CacheBits:      cfg.Cache.Bits,
		PrefetchBlocks: cfg.Prefetch.MaxBlocks,
	})
	if err != nil {
		return err
	}

	buf := make([]byte, mode.SectorSize())
	for i := uint32(0); i < dumpCount; i++ {
		lsn := dumpLSN + i
		if err := sub.DirectReadSector(lsn, mode, buf); err != nil {
			return fmt.Errorf("failed to read sector %d: %w", lsn, err)
		}

		if dumpRaw {
			if _, err := os.Stdout.Write(buf); err != nil {
				return err
			}
			continue
		}

		fmt.Printf("-- sector %d (mode %s) --\n", lsn, mode)
		fmt.Print(hex.Dump(buf))
	}

	return nil
}
