package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marmos91/discread/internal/bytesize"
	"github.com/marmos91/discread/pkg/media"
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show disc information for an image file",
	Long: `Open an image file, probe its ISO 9660 primary volume descriptor and
print the disc classification, sector count and volume identity.

Examples:
  discread info game.iso
  discread info track01.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	src, err := media.NewImageSource(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sectors := src.SectorCount()
	discType := media.Classify(src.MediaType())

	sectorSize := int64(media.DataSectorSize)
	if src.Format() == media.FormatRaw {
		sectorSize = media.RawSectorSize
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Image", src.Path()})
	table.Append([]string{"Layout", src.Format().String()})
	table.Append([]string{"Disc type", discType.String()})
	table.Append([]string{"Sectors", fmt.Sprintf("%d", sectors)})
	table.Append([]string{"Size", bytesize.ByteSize(int64(sectors) * sectorSize).String()})

	// Audio discs and blank media have no ISO 9660 track; that is not an
	// error for info purposes.
	if vol, err := media.ProbeVolume(src); err == nil {
		table.Append([]string{"System ID", vol.SystemID})
		table.Append([]string{"Volume ID", vol.VolumeID})
		table.Append([]string{"Volume sectors", fmt.Sprintf("%d", vol.SpaceSize)})
	} else {
		table.Append([]string{"Volume", err.Error()})
	}

	table.Render()
	return nil
}
