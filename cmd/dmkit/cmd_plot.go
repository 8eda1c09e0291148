package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smxlab/dmkit/internal/database"
	"github.com/smxlab/dmkit/internal/plot"
)

var (
	plotX      string
	plotY      string
	plotGroup  string
	plotXLog   bool
	plotYLog   bool
	plotTitle  string
	plotOutput string
)

// plotCmd renders a stored frame
var plotCmd = &cobra.Command{
	Use:   "plot [database] [key]",
	Short: "Plot a stored frame",
	Long: `Renders an x/y plot of a frame stored in the local database. The
database name is <device>_<hash> and the key is the frame key, for
example sim/fgummel_<hash>/T300.00K or meas/fgummel. The output format
follows the file extension (.png, .pdf).`,
	Args: cobra.ExactArgs(2),
	RunE: plotFrame,
}

func init() {
	plotCmd.Flags().StringVarP(&plotX, "x", "x", "", "x column (required)")
	plotCmd.Flags().StringVarP(&plotY, "y", "y", "", "y column (required)")
	plotCmd.Flags().StringVarP(&plotGroup, "group", "g", "", "split into one line per value of this column")
	plotCmd.Flags().BoolVar(&plotXLog, "xlog", false, "logarithmic x axis")
	plotCmd.Flags().BoolVar(&plotYLog, "ylog", false, "logarithmic y axis")
	plotCmd.Flags().StringVarP(&plotTitle, "title", "t", "", "plot title")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "output file, defaults to <y>_vs_<x>.png")
	plotCmd.MarkFlagRequired("x")
	plotCmd.MarkFlagRequired("y")
}

func plotFrame(cmd *cobra.Command, args []string) error {
	db := database.New(cfg.Directories.Database)
	df, err := db.LoadFrame(args[0], args[1])
	if err != nil {
		return err
	}

	view := plot.View{
		Title:   plotTitle,
		XCol:    plotX,
		YCol:    plotY,
		GroupBy: plotGroup,
		XLog:    plotXLog,
		YLog:    plotYLog,
	}
	out := plotOutput
	if out == "" {
		out = plot.FileName(view, "png")
	}

	if err := plot.Save(df, view, out, plot.DefaultSize, plot.DefaultSize); err != nil {
		return err
	}
	log.Info().Str("file", out).Msg("Plot written")
	return nil
}
