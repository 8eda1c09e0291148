package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smxlab/dmkit/internal/database"
	"github.com/smxlab/dmkit/internal/dut"
	"github.com/smxlab/dmkit/internal/mdm"
)

// importCmd reads measurement files into the local database
var importCmd = &cobra.Command{
	Use:   "import [device] [file.mdm...]",
	Short: "Import MDM measurement files",
	Long: `Reads IC-CAP MDM measurement files and stores them in the local
frame database under the given device name. Each file becomes one frame
keyed meas/<file base name>.`,
	Args: cobra.MinimumNArgs(2),
	RunE: importMDM,
}

func importMDM(cmd *cobra.Command, args []string) error {
	device := dut.NewMeas(args[0])
	db := database.New(cfg.Directories.Database)
	dbName := dut.FolderName(device)

	for _, path := range args[1:] {
		df, err := mdm.ReadFile(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		key := dut.JoinKey("meas", base)
		if err := db.SaveFrame(dbName, key, df); err != nil {
			return err
		}

		log.Info().
			Str("file", filepath.Base(path)).
			Str("key", key).
			Int("rows", df.NRows()).
			Msg("Imported")
	}
	return nil
}
