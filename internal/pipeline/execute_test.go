package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/summary"
)

func runConfig(t *testing.T, inputDir string, format config.Format) config.Run {
	t.Helper()
	cfg := config.Defaults()
	cfg.InputDir = inputDir
	cfg.OutputFile = filepath.Join(t.TempDir(), "merged"+format.Extension())
	cfg.Format = string(format)
	cfg.Sampling.Enabled = false
	cfg.Runtime.Workers = 2
	return cfg
}

type stepBackend struct {
	mu    sync.Mutex
	steps map[string]string
}

func (b *stepBackend) IncCounter(name string, _ float64, l metrics.Labels) {
	if name != metrics.StepTotal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.steps == nil {
		b.steps = map[string]string{}
	}
	b.steps[l["step"]] = l["status"]
}
func (b *stepBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *stepBackend) Flush() error                                    { return nil }

type fakePublisher struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, paths []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var uris []string
	for _, path := range paths {
		p.paths = append(p.paths, path)
		uris = append(uris, "s3://bucket/"+filepath.Base(path))
	}
	return uris, nil
}

func TestExecute_ThreeRowScenario(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV})
	cfg := runConfig(t, dir, config.FormatCSV)
	rec := &recorder{}
	mb := &stepBackend{}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	md, err := Execute(context.Background(), cfg, Deps{
		Observer: rec,
		Metrics:  metrics.NewRecorder("test", mb),
		Now:      func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if md.TotalRows != 3 || md.TotalFiles != 1 || len(md.FailedFiles) != 0 {
		t.Fatalf("metadata = %+v", md)
	}
	if md.UseSample || md.SampleFraction != nil || md.FileFormat != "csv" {
		t.Fatalf("metadata = %+v", md)
	}
	if !md.StartedAt.Equal(fixed) || md.RunID == "" {
		t.Fatalf("metadata = %+v", md)
	}

	base := cfg.BasePath()
	wantOutputs := []string{base + ".csv", base + "_summary.json", base + "_summary.xlsx"}
	if !reflect.DeepEqual(md.Outputs, wantOutputs) {
		t.Fatalf("outputs = %v, want %v", md.Outputs, wantOutputs)
	}

	f, err := os.Open(base + ".csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(rows))
	}
	for _, row := range rows[1:] {
		for i, cell := range row {
			if cell == "" {
				t.Fatalf("row %v: column %d empty", row, i)
			}
		}
	}

	raw, err := os.ReadFile(base + "_summary.json")
	if err != nil {
		t.Fatal(err)
	}
	var rep summary.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatal(err)
	}
	want := []summary.PeriodTotal{{Period: 2020, Value: 15}, {Period: 2021, Value: 7}}
	if !reflect.DeepEqual(rep.Series, want) {
		t.Fatalf("series = %+v, want %+v", rep.Series, want)
	}

	if _, err := os.Stat(base + "_metadata.json"); err != nil {
		t.Fatalf("metadata file: %v", err)
	}

	last := rec.logs[len(rec.logs)-3:]
	if !strings.HasPrefix(last[0], "Data processing complete. Output saved to ") ||
		!strings.HasPrefix(last[1], "Summary statistics saved to ") ||
		!strings.HasPrefix(last[2], "Processing metadata saved to ") {
		t.Fatalf("completion logs = %v", last)
	}

	for _, s := range []string{StepDiscover, StepReference, StepProcess, StepSummarize, StepWrite, StepMetadata} {
		if mb.steps[s] != "success" {
			t.Fatalf("step %s = %q (steps %v)", s, mb.steps[s], mb.steps)
		}
	}
	if _, ok := mb.steps[StepPublish]; ok {
		t.Fatalf("publish step recorded without a publisher")
	}
}

func TestExecute_FatalErrors(t *testing.T) {
	t.Parallel()

	refsOnly := func(t *testing.T) string { return inputDir(t, nil) }
	mainOnly := func(t *testing.T) string {
		dir := t.TempDir()
		writeFile(t, dir, "BACI_HS92_Y2020_V202401b.csv", threeRowsCSV)
		return dir
	}
	allBad := func(t *testing.T) string {
		return inputDir(t, map[string]string{"BACI_HS92_Y2020_V202401b.csv": "a,b\n1,2\n"})
	}

	tests := []struct {
		name   string
		dir    func(t *testing.T) string
		format config.Format
		kind   errs.Kind
	}{
		{"unsupported format checked first", func(t *testing.T) string { return t.TempDir() }, "hdf5", errs.KindUnsupportedOutputFormat},
		{"missing dir", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }, config.FormatCSV, errs.KindNoMainFilesFound},
		{"empty dir reports reference data first", func(t *testing.T) string { return t.TempDir() }, config.FormatCSV, errs.KindMissingReferenceData},
		{"no reference files", mainOnly, config.FormatCSV, errs.KindMissingReferenceData},
		{"no main files", refsOnly, config.FormatCSV, errs.KindNoMainFilesFound},
		{"all files fail", allBad, config.FormatCSV, errs.KindNoDataProcessed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := runConfig(t, tt.dir(t), tt.format)
			rec := &recorder{}
			md, err := Execute(context.Background(), cfg, Deps{Observer: rec})
			if errs.KindOf(err) != tt.kind {
				t.Fatalf("err = %v (kind %v), want %v", err, errs.KindOf(err), tt.kind)
			}
			if md != nil {
				t.Fatalf("metadata = %+v", md)
			}
			if len(rec.logs) == 0 || !strings.HasPrefix(rec.logs[len(rec.logs)-1], "Error: ") {
				t.Fatalf("logs = %v", rec.logs)
			}
			if _, err := os.Stat(cfg.BasePath() + "_metadata.json"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("metadata written on failure: %v", err)
			}
		})
	}
}

func TestExecute_InvalidConfigRejectedBeforeDiscovery(t *testing.T) {
	t.Parallel()

	// The input directory does not exist; validation must fail first.
	cfg := runConfig(t, filepath.Join(t.TempDir(), "nope"), config.FormatPostgres)
	cfg.Storage.DSN = ""
	rec := &recorder{}

	_, err := Execute(context.Background(), cfg, Deps{Observer: rec})
	if err == nil || !strings.Contains(err.Error(), "storage.dsn") {
		t.Fatalf("err = %v, want storage.dsn issue", err)
	}
	if errs.KindOf(err) == errs.KindNoMainFilesFound {
		t.Fatalf("discovery ran before validation: %v", err)
	}
	if len(rec.logs) != 1 || !strings.HasPrefix(rec.logs[0], "Error: invalid configuration") {
		t.Fatalf("logs = %v", rec.logs)
	}
}

func TestExecute_SQLiteDefaultsToBaseDB(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV})
	cfg := runConfig(t, dir, config.FormatSQLite)
	cfg.Storage.DSN = ""

	md, err := Execute(context.Background(), cfg, Deps{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if md.Outputs[0] != cfg.SQLiteDSN() || md.Outputs[0] != cfg.BasePath()+".db" {
		t.Fatalf("outputs = %v, want %s first", md.Outputs, cfg.SQLiteDSN())
	}
	if _, err := os.Stat(cfg.SQLiteDSN()); err != nil {
		t.Fatalf("database file: %v", err)
	}
	if md.Workers != 2 || md.ChunkSize != cfg.Runtime.ChunkSize {
		t.Fatalf("runtime metadata = %d workers, %d chunk size", md.Workers, md.ChunkSize)
	}
}

func TestExecute_PartialFailure(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{
		"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV,
		"BACI_HS92_Y2021_V202401b.csv": "t,i,j,k,v,q\n2021,4,8,010121,abc,1\n",
	})
	cfg := runConfig(t, dir, config.FormatJSONL)

	md, err := Execute(context.Background(), cfg, Deps{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if md.TotalFiles != 1 || md.TotalRows != 3 {
		t.Fatalf("metadata = %+v", md)
	}
	if len(md.FailedFiles) != 1 || filepath.Base(md.FailedFiles[0]) != "BACI_HS92_Y2021_V202401b.csv" {
		t.Fatalf("failed = %v", md.FailedFiles)
	}
}

func TestExecute_RestrictAndSample(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{
		"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV,
		"BACI_HS92_Y2021_V202401b.csv": threeRowsCSV,
	})
	cfg := runConfig(t, dir, config.FormatCSV)
	cfg.Sampling = config.Sampling{Enabled: true, Fraction: 1, Seed: 3}

	md, err := Execute(context.Background(), cfg, Deps{MainFiles: []string{"BACI_HS92_Y2021_V202401b.csv"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if md.TotalFiles != 1 || md.TotalRows != 3 {
		t.Fatalf("metadata = %+v", md)
	}
	if md.SampleFraction == nil || *md.SampleFraction != 1 || !md.UseSample {
		t.Fatalf("sampling metadata = %+v", md)
	}
}

func TestExecute_Publish(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV})
	cfg := runConfig(t, dir, config.FormatParquet)
	pub := &fakePublisher{}

	md, err := Execute(context.Background(), cfg, Deps{Publisher: pub})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	base := cfg.BasePath()
	wantPaths := []string{base + ".parquet", base + "_summary.json", base + "_summary.xlsx", base + "_metadata.json"}
	if !reflect.DeepEqual(pub.paths, wantPaths) {
		t.Fatalf("published = %v, want %v", pub.paths, wantPaths)
	}
	if got := md.Outputs[len(md.Outputs)-1]; got != "s3://bucket/merged_summary.xlsx" {
		t.Fatalf("outputs = %v", md.Outputs)
	}
}

func TestExecute_PublishFailureIsFatal(t *testing.T) {
	t.Parallel()

	dir := inputDir(t, map[string]string{"BACI_HS92_Y2020_V202401b.csv": threeRowsCSV})
	cfg := runConfig(t, dir, config.FormatCSV)

	_, err := Execute(context.Background(), cfg, Deps{Publisher: &fakePublisher{err: errors.New("denied")}})
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("err = %v", err)
	}
}
