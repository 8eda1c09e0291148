package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smxlab/dmkit/internal/database"
	"github.com/smxlab/dmkit/internal/repository/postgres"
	"github.com/smxlab/dmkit/internal/simcon"
	"github.com/smxlab/dmkit/internal/storage"
)

var runForce bool

// runCmd simulates all sweeps of a job file
var runCmd = &cobra.Command{
	Use:   "run [job.yaml]",
	Short: "Simulate the sweeps of a job file",
	Long: `Reads a job file describing a device and its sweeps, runs the
configured simulator for every sweep whose result is not stored yet and
stores the parsed results. Results already present are skipped unless
--force is given.

Example job file:

  name: npn1
  simulator: ngspice
  mcard: hicum_l2.yaml
  netlist:
    elements:
      - {name: VB, type: V, nodes: [B, "0"]}
      - {name: VC, type: V, nodes: [C, "0"]}
      - {name: Q1, type: Q, nodes: [C, B, "0"], model: hicum}
  sweeps:
    - name: fgummel
      othervar: {TEMP: 300}
      defs:
        - {var: V_C, type: CON, values: [1]}
        - {var: V_B, type: LIN, values: [0.4, 1.0, 61]}
      outputs: [I_C, I_B]`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "re-simulate stored results")
}

func runJob(cmd *cobra.Command, args []string) error {
	job, err := loadJob(args[0])
	if err != nil {
		return err
	}
	view, err := job.buildView(cfg)
	if err != nil {
		return err
	}
	sweeps, err := job.buildSweeps()
	if err != nil {
		return err
	}

	opts := simcon.Options{
		SimDir:  cfg.Directories.Simulations,
		NCore:   cfg.Run.NCore,
		Timeout: cfg.Run.Timeout,
		OpenVAF: cfg.Simulators.OpenVAF,
	}

	// The run ledger and the archive store are optional, a purely local
	// setup leaves both unconfigured.
	if cfg.Database.URL != "" {
		sqlDB, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("run ledger: %w", err)
		}
		defer sqlDB.Close()
		opts.Ledger = postgres.NewPostgresRunRepository(sqlDB)
	}
	if cfg.S3.Bucket != "" {
		s3Service, err := storage.NewS3Service(storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("archive store: %w", err)
		}
		opts.Archiver = s3Service
	}

	db := database.New(cfg.Directories.Database)
	controller := simcon.New(db, opts, log.Logger)
	if err := controller.Append(view, sweeps...); err != nil {
		return err
	}

	log.Info().
		Str("dut", view.Name()).
		Int("sweeps", controller.QueueLen()).
		Str("simulator", job.Simulator).
		Msg("Starting simulations")

	allOK, ranAny := controller.RunAndRead(context.Background(), runForce)
	if !ranAny {
		log.Info().Msg("All results already stored")
	}
	if !allOK {
		return fmt.Errorf("run: %d sweeps of %s did not all complete, see the simulation logs", len(sweeps), view.Name())
	}

	for _, sw := range sweeps {
		df, err := controller.Result(view, sw)
		if err != nil {
			return err
		}
		log.Info().
			Str("sweep", sw.Name).
			Int("rows", df.NRows()).
			Int("cols", len(df.Cols())).
			Msg("Result stored")
	}
	return nil
}
