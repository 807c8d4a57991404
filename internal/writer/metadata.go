package writer

import (
	"time"

	"github.com/google/uuid"
)

// RunMetadata describes a finished run. It is written next to the data as
// <base>_metadata.json.
type RunMetadata struct {
	RunID          string `json:"run_id"`
	InputDirectory string `json:"input_directory"`
	OutputFile     string `json:"output_file"`
	FileFormat     string `json:"file_format"`
	UseSample      bool   `json:"use_sample"`
	// SampleFraction is null when sampling is disabled.
	SampleFraction *float64 `json:"sample_fraction"`
	SampleSeed     uint64   `json:"sample_seed"`
	Workers        int      `json:"number_of_workers"`
	ChunkSize      int      `json:"chunk_size"`
	// TotalRows is the number of rows in the merged output.
	TotalRows int `json:"total_rows_processed"`
	// TotalFiles counts main files processed successfully.
	TotalFiles  int       `json:"total_files_processed"`
	FailedFiles []string  `json:"failed_files"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	// Outputs lists every artifact written, metadata excluded.
	Outputs []string `json:"outputs"`
}

// NewRunID returns a random run identifier.
func NewRunID() string { return uuid.NewString() }

// MetadataPath names the metadata artifact of base.
func MetadataPath(base string) string { return base + "_metadata.json" }

// WriteMetadata writes md as indented JSON to <base>_metadata.json.
func WriteMetadata(base string, md RunMetadata) (string, error) {
	if md.FailedFiles == nil {
		md.FailedFiles = []string{}
	}
	if md.Outputs == nil {
		md.Outputs = []string{}
	}
	path := MetadataPath(base)
	if err := writeJSON(path, md); err != nil {
		return "", err
	}
	return path, nil
}
