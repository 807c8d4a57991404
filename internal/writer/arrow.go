package writer

import (
	"context"
	"database/sql"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// Schema is the Arrow schema of the merged dataset, in domain.Columns
// order. Trade fields are non-nullable.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "t", Type: arrow.PrimitiveTypes.Int64},
	{Name: "i", Type: arrow.PrimitiveTypes.Int64},
	{Name: "j", Type: arrow.PrimitiveTypes.Int64},
	{Name: "k", Type: arrow.BinaryTypes.String},
	{Name: "q", Type: arrow.PrimitiveTypes.Float64},
	{Name: "v", Type: arrow.PrimitiveTypes.Float64},
	{Name: "exporter_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "exporter_iso2", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "exporter_iso3", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "importer_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "importer_iso2", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "importer_iso3", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "description", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// recordWriter is the common surface of the parquet and IPC file writers.
type recordWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

// writeRecords streams records into rw as record batches of at most batch
// rows, then closes rw.
func writeRecords(ctx context.Context, rw recordWriter, records []domain.EnrichedRecord, batch int) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema)
	defer b.Release()

	for start := 0; start < len(records); start += batch {
		if err := ctx.Err(); err != nil {
			rw.Close()
			return err
		}
		end := min(start+batch, len(records))
		appendRows(b, records[start:end])
		rec := b.NewRecord()
		err := rw.Write(rec)
		rec.Release()
		if err != nil {
			rw.Close()
			return err
		}
	}
	return rw.Close()
}

func appendRows(b *array.RecordBuilder, rows []domain.EnrichedRecord) {
	var (
		t = b.Field(0).(*array.Int64Builder)
		i = b.Field(1).(*array.Int64Builder)
		j = b.Field(2).(*array.Int64Builder)
		k = b.Field(3).(*array.StringBuilder)
		q = b.Field(4).(*array.Float64Builder)
		v = b.Field(5).(*array.Float64Builder)
	)
	for f := 0; f < b.Schema().NumFields(); f++ {
		b.Field(f).Reserve(len(rows))
	}
	for n := range rows {
		r := &rows[n]
		t.Append(int64(r.Period))
		i.Append(int64(r.Exporter))
		j.Append(int64(r.Importer))
		k.Append(r.Product)
		q.Append(r.Quantity)
		v.Append(r.Value)
		appendNullable(b.Field(6), r.ExporterName)
		appendNullable(b.Field(7), r.ExporterISO2)
		appendNullable(b.Field(8), r.ExporterISO3)
		appendNullable(b.Field(9), r.ImporterName)
		appendNullable(b.Field(10), r.ImporterISO2)
		appendNullable(b.Field(11), r.ImporterISO3)
		appendNullable(b.Field(12), r.ProductDescription)
	}
}

func appendNullable(b array.Builder, s sql.NullString) {
	sb := b.(*array.StringBuilder)
	if !s.Valid {
		sb.AppendNull()
		return
	}
	sb.Append(s.String)
}

// parquetSink writes a Snappy-compressed Parquet file.
type parquetSink struct {
	path  string
	batch int
}

func (s *parquetSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	err := writeFile(s.path, func(w io.Writer) error {
		props := parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy),
			parquet.WithMaxRowGroupLength(int64(s.batch)),
		)
		fw, err := pqarrow.NewFileWriter(Schema, w, props, pqarrow.DefaultWriterProps())
		if err != nil {
			return err
		}
		return writeRecords(ctx, fw, records, s.batch)
	})
	if err != nil {
		return "", err
	}
	return s.path, nil
}

// featherSink writes an Arrow IPC file (Feather v2).
type featherSink struct {
	path  string
	batch int
}

func (s *featherSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	err := writeFile(s.path, func(w io.Writer) error {
		fw, err := ipc.NewFileWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(memory.DefaultAllocator))
		if err != nil {
			return err
		}
		return writeRecords(ctx, fw, records, s.batch)
	})
	if err != nil {
		return "", err
	}
	return s.path, nil
}
