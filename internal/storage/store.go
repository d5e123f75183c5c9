// Package storage persists scenario runs: metadata, the resolved config and the
// tick trace of every run, with a SQLite index for listing.
package storage

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/metrics"
	"github.com/san-kum/motionlab/internal/motion"
)

var ErrNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	traceFile    = "trace.csv"
	indexFile    = "index.db"
)

type Store struct {
	baseDir string
	db      *sql.DB
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the store directory and opens the run index.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", filepath.Join(s.baseDir, indexFile))
	if err != nil {
		return errors.Wrap(err, "opening run index")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created INTEGER NOT NULL,
			seed INTEGER,
			ticks INTEGER,
			drift DOUBLE
		);
	`)
	if err != nil {
		db.Close()
		return errors.Wrap(err, "creating run index")
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type RunMetadata struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Seed      int64             `json:"seed"`
	Ticks     int               `json:"ticks"`
	Estimate  geom.Pose         `json:"estimate"`
	Truth     geom.Pose         `json:"truth"`
	Drift     float64           `json:"drift"`
	Motions   []metrics.Summary `json:"motions"`
}

// Save writes a run and returns its id.
func (s *Store) Save(meta RunMetadata, cfg *config.Config, trace []motion.Tick) (string, error) {
	if s.db == nil {
		return "", errors.New("storage: store not initialized")
	}
	meta.ID = meta.Name + "_" + uuid.NewString()[:8]
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Ticks = len(trace)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if cfg != nil {
		if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
			return "", err
		}
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), trace); err != nil {
		return "", err
	}

	_, err := s.db.Exec(
		"INSERT INTO runs (id, name, created, seed, ticks, drift) VALUES (?, ?, ?, ?, ?, ?)",
		meta.ID, meta.Name, meta.Timestamp.UnixNano(), meta.Seed, meta.Ticks, meta.Drift,
	)
	if err != nil {
		return "", errors.Wrap(err, "indexing run")
	}
	return meta.ID, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// List returns the indexed runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	if s.db == nil {
		return nil, errors.New("storage: store not initialized")
	}
	rows, err := s.db.Query("SELECT id, name, created, seed, ticks, drift FROM runs ORDER BY created, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var created int64
		if err := rows.Scan(&meta.ID, &meta.Name, &created, &meta.Seed, &meta.Ticks, &meta.Drift); err != nil {
			return nil, err
		}
		meta.Timestamp = time.Unix(0, created)
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// TracePath is the location of a run's trace CSV.
func (s *Store) TracePath(runID string) string {
	return filepath.Join(s.baseDir, runID, traceFile)
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

var traceHeader = []string{
	"seq", "t_ms", "x", "y", "heading", "target_x", "target_y",
	"linear_error", "cosine_error", "angular_error",
	"linear_output", "angular_output", "left", "right", "near", "distance",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeTrace(path string, trace []motion.Tick) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(traceHeader); err != nil {
		return err
	}
	var start time.Time
	if len(trace) > 0 {
		start = trace[0].Time
	}
	for _, tick := range trace {
		row := []string{
			strconv.FormatUint(tick.Seq, 10),
			formatFloat(float64(tick.Time.Sub(start)) / float64(time.Millisecond)),
			formatFloat(tick.Pose.X),
			formatFloat(tick.Pose.Y),
			formatFloat(tick.Pose.Heading),
			formatFloat(tick.Target.X),
			formatFloat(tick.Target.Y),
			formatFloat(tick.LinearError),
			formatFloat(tick.CosineLinearError),
			formatFloat(tick.AngularError),
			formatFloat(tick.LinearOutput),
			formatFloat(tick.AngularOutput),
			formatFloat(tick.Left),
			formatFloat(tick.Right),
			strconv.FormatBool(tick.Near),
			formatFloat(tick.Distance),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadTrace reads a run's trace. Tick times come back as offsets from the Unix
// epoch.
func (s *Store) LoadTrace(runID string) ([]motion.Tick, error) {
	f, err := os.Open(s.TracePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(traceHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []motion.Tick{}, nil
	}

	trace := make([]motion.Tick, 0, len(records)-1)
	for i, record := range records[1:] {
		tick, err := parseTick(record)
		if err != nil {
			return nil, errors.Wrapf(err, "trace row %d", i+1)
		}
		trace = append(trace, tick)
	}
	return trace, nil
}

func parseTick(record []string) (motion.Tick, error) {
	seq, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return motion.Tick{}, err
	}
	near, err := strconv.ParseBool(record[14])
	if err != nil {
		return motion.Tick{}, err
	}
	v := make([]float64, 0, 14)
	for _, field := range append(record[1:14:14], record[15]) {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return motion.Tick{}, err
		}
		v = append(v, f)
	}
	return motion.Tick{
		Seq:               seq,
		Time:              time.Unix(0, 0).Add(time.Duration(v[0] * float64(time.Millisecond))),
		Pose:              geom.NewPose(v[1], v[2], v[3]),
		Target:            r2.Point{X: v[4], Y: v[5]},
		LinearError:       v[6],
		CosineLinearError: v[7],
		AngularError:      v[8],
		LinearOutput:      v[9],
		AngularOutput:     v[10],
		Left:              v[11],
		Right:             v[12],
		Near:              near,
		Distance:          v[13],
	}, nil
}
