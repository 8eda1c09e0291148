// Package simcon runs queued device/sweep pairs through their external
// simulators. Finished results are memoized in the local database by the
// device and sweep fingerprints, so re-running an unchanged pair reads the
// stored frame instead of starting a process. Runs execute in parallel with
// a bounded worker count and a per-run timeout, and are optionally recorded
// in a ledger and archived to object storage.
package simcon

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smxlab/dmkit/internal/config"
	"github.com/smxlab/dmkit/internal/database"
	"github.com/smxlab/dmkit/internal/dut"
	"github.com/smxlab/dmkit/pkg/dataframe"
	"github.com/smxlab/dmkit/pkg/models"
	"github.com/smxlab/dmkit/pkg/sweep"
)

const logFileName = "sim.log"

// Exit codes tolerated from simulators that crash after writing their
// output (SIGABRT and SIGSEGV the way the shells report them).
var toleratedExitCodes = map[int]bool{134: true, 139: true}

// Ledger is the subset of the run repository the controller records into
// and consults when deciding whether a stored result can be trusted.
type Ledger interface {
	Create(ctx context.Context, run *models.Run) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
	LatestCompleted(ctx context.Context, dutHash, sweepHash string) (*models.Run, error)
}

// Archiver uploads archived simulation folders.
type Archiver interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// Options configures a Controller. Ledger and Archiver are optional.
type Options struct {
	SimDir         string
	NCore          int
	Timeout        time.Duration
	OpenVAF        config.CommandConfig
	Ledger         Ledger
	Archiver       Archiver
	DeleteArchived bool
}

type entry struct {
	view dut.View
	sw   *sweep.Sweep

	runID uuid.UUID
	ok    bool
	ran   bool
}

// Controller queues device/sweep pairs and runs them.
type Controller struct {
	db   *database.Manager
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	queue []*entry
	seen  map[string]bool
}

// New returns a controller storing results in the given database manager.
func New(db *database.Manager, opts Options, log zerolog.Logger) *Controller {
	if opts.NCore < 1 {
		opts.NCore = runtime.NumCPU()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	return &Controller{
		db:   db,
		opts: opts,
		log:  log,
		seen: make(map[string]bool),
	}
}

// Append queues sweeps for a view. A (device hash, sweep hash) pair already
// queued is dropped silently; a view that cannot be simulated is an error.
func (c *Controller) Append(view dut.View, sweeps ...*sweep.Sweep) error {
	if len(view.SimCommand()) == 0 {
		return fmt.Errorf("%w: %s", dut.ErrNotSimulatable, view.Name())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sw := range sweeps {
		key := view.Hash() + "|" + sw.Hash()
		if c.seen[key] {
			c.log.Debug().Str("dut", view.Name()).Str("sweep", sw.Name).Msg("duplicate pair dropped")
			continue
		}
		c.seen[key] = true
		c.queue = append(c.queue, &entry{view: view, sw: sw})
	}
	return nil
}

// QueueLen returns the number of queued pairs.
func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Result loads the stored frame for a device/sweep pair. database.ErrNoResult
// is returned when the pair never completed.
func (c *Controller) Result(view dut.View, sw *sweep.Sweep) (*dataframe.DataFrame, error) {
	return c.db.LoadFrame(dbName(view), resultKey(sw))
}

// RunAndRead works off the queue: pairs with a stored result are skipped
// unless force is set, the rest are simulated in parallel. It reports whether
// every pair ended with a readable result and whether any simulation actually
// ran. The queue is drained either way.
func (c *Controller) RunAndRead(ctx context.Context, force bool) (allOK, ranAny bool) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.seen = make(map[string]bool)
	c.mu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(c.opts.NCore)

	for _, e := range queue {
		if !force && c.db.HasFrame(dbName(e.view), resultKey(e.sw)) && c.ledgerCompleted(ctx, e) {
			c.log.Debug().
				Str("dut", e.view.Name()).
				Str("sweep", e.sw.Name).
				Msg("result memoized, skipping simulation")
			e.ok = true
			continue
		}

		e := e
		e.ran = true
		g.Go(func() error {
			c.runOne(ctx, e)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers report through their entry

	allOK = true
	for _, e := range queue {
		allOK = allOK && e.ok
		ranAny = ranAny || e.ran
	}
	return allOK, ranAny
}

func (c *Controller) runOne(ctx context.Context, e *entry) {
	log := c.log.With().Str("dut", e.view.Name()).Str("sweep", e.sw.Name).Logger()
	folder := dut.SimFolder(c.opts.SimDir, e.view, e.sw)

	c.ledgerCreate(ctx, e)

	// Step 1: fresh sim folder with all input files
	if err := c.prepare(folder, e); err != nil {
		log.Error().Err(err).Msg("preparing simulation failed")
		c.ledgerError(ctx, e, err)
		return
	}

	// Step 2: compile Verilog-A modules when the view carries any
	if err := c.compileVA(ctx, folder, e.view); err != nil {
		log.Error().Err(err).Msg("compiling Verilog-A failed")
		c.ledgerError(ctx, e, err)
		return
	}

	// Step 3: run the simulator
	c.ledgerStatus(ctx, e, models.StatusRunning, 10)
	if err := c.execute(ctx, folder, e.view); err != nil {
		log.Error().Err(err).Msg("simulator did not start")
		c.ledgerError(ctx, e, err)
		return
	}

	// Step 4: validate the log and parse the output
	c.ledgerStatus(ctx, e, models.StatusRunning, 70)
	if err := e.view.ValidateLog(folder); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		c.ledgerError(ctx, e, err)
		return
	}
	df, err := e.view.ParseOutput(folder, e.sw)
	if err != nil {
		log.Error().Err(err).Msg("parsing output failed")
		c.ledgerError(ctx, e, err)
		return
	}

	// Step 5: store the result
	if err := c.db.SaveFrame(dbName(e.view), resultKey(e.sw), df); err != nil {
		log.Error().Err(err).Msg("storing result failed")
		c.ledgerError(ctx, e, err)
		return
	}
	c.ledgerStatus(ctx, e, models.StatusCompleted, 100)

	// Step 6: archive the folder
	if err := c.archive(ctx, folder, e); err != nil {
		// the result itself is stored, only the archive is missing
		log.Warn().Err(err).Msg("archiving simulation folder failed")
	}

	log.Info().Int("rows", df.NRows()).Msg("simulation finished")
	e.ok = true
}

func (c *Controller) prepare(folder string, e *entry) error {
	if err := os.RemoveAll(folder); err != nil {
		return err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	input, err := e.view.MakeInput(e.sw)
	if err != nil {
		return err
	}
	path := filepath.Join(folder, e.view.InputFileName())
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		return err
	}

	if aux, ok := e.view.(dut.AuxWriter); ok {
		if err := aux.WriteAux(folder, e.sw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) compileVA(ctx context.Context, folder string, view dut.View) error {
	va, ok := view.(dut.VAModule)
	if !ok {
		return nil
	}
	files := va.VAFiles()
	if len(files) == 0 {
		return nil
	}
	if c.opts.OpenVAF.Command == "" {
		return fmt.Errorf("simcon: %s needs Verilog-A compilation but no openvaf command is configured", view.Name())
	}

	for _, f := range files {
		argv := append([]string{}, c.opts.OpenVAF.Args...)
		argv = append(argv, f.FileName())
		cmd := exec.CommandContext(ctx, c.opts.OpenVAF.Command, argv...)
		cmd.Dir = folder
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("simcon: openvaf failed for %s: %w, output: %s", f.FileName(), err, output)
		}
	}
	return nil
}

// execute starts the simulator in the folder with the run timeout. Stdout
// and stderr go to sim.log. Non-zero exits are not fatal here: crashing
// simulators often leave usable output, so validation and parsing decide.
func (c *Controller) execute(ctx context.Context, folder string, view dut.View) error {
	tctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	argv := view.SimCommand()
	cmd := exec.CommandContext(tctx, argv[0], argv[1:]...)
	cmd.Dir = folder

	logFile, err := os.Create(filepath.Join(folder, logFileName))
	if err != nil {
		return err
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	err = cmd.Run()
	if err == nil {
		return nil
	}
	if tctx.Err() != nil {
		return fmt.Errorf("simcon: %s timed out after %s", argv[0], c.opts.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if toleratedExitCodes[code] {
			c.log.Warn().Str("dut", view.Name()).Int("exit_code", code).Msg("simulator crashed after finishing, output kept")
		} else {
			c.log.Error().Str("dut", view.Name()).Int("exit_code", code).Msg("simulator exited non-zero, attempting to parse output")
		}
		return nil
	}
	return err
}

func (c *Controller) archive(ctx context.Context, folder string, e *entry) error {
	if c.opts.Archiver == nil {
		return nil
	}
	buf, err := zipFolder(folder)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("archives/%s/%s.zip", dut.FolderName(e.view), e.sw.FolderName())
	if err := c.opts.Archiver.Upload(ctx, key, buf); err != nil {
		return err
	}
	if c.opts.Ledger != nil {
		if err := c.opts.Ledger.SetArchiveKey(ctx, e.runID, key); err != nil {
			return err
		}
	}
	if c.opts.DeleteArchived {
		return os.RemoveAll(folder)
	}
	return nil
}

func zipFolder(folder string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w, err := zw.Create(entry.Name())
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	return buf, zw.Close()
}

// ledgerCompleted reports whether the ledger records a completed run for the
// pair. Without a ledger the stored frame alone decides.
func (c *Controller) ledgerCompleted(ctx context.Context, e *entry) bool {
	if c.opts.Ledger == nil {
		return true
	}
	run, err := c.opts.Ledger.LatestCompleted(ctx, e.view.Hash(), e.sw.Hash())
	return err == nil && run != nil
}

func (c *Controller) ledgerCreate(ctx context.Context, e *entry) {
	if c.opts.Ledger == nil {
		return
	}
	e.runID = uuid.New()
	now := time.Now()
	run := &models.Run{
		ID:        e.runID.String(),
		DutName:   e.view.Name(),
		DutHash:   e.view.Hash(),
		SweepName: e.sw.Name,
		SweepHash: e.sw.Hash(),
		Simulator: filepath.Base(e.view.SimCommand()[0]),
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.opts.Ledger.Create(ctx, run); err != nil {
		c.log.Warn().Err(err).Msg("recording run in ledger failed")
	}
}

func (c *Controller) ledgerStatus(ctx context.Context, e *entry, status string, progress int) {
	if c.opts.Ledger == nil {
		return
	}
	if err := c.opts.Ledger.UpdateStatus(ctx, e.runID, status, progress); err != nil {
		c.log.Warn().Err(err).Msg("updating run status failed")
	}
}

func (c *Controller) ledgerError(ctx context.Context, e *entry, runErr error) {
	if c.opts.Ledger == nil {
		return
	}
	if err := c.opts.Ledger.UpdateError(ctx, e.runID, runErr.Error()); err != nil {
		c.log.Warn().Err(err).Msg("updating run error failed")
	}
}

func dbName(view dut.View) string {
	return dut.FolderName(view)
}

func resultKey(sw *sweep.Sweep) string {
	return dut.JoinKey("sim", sw.FolderName(), dut.TempKey(sw.Temperature()))
}
