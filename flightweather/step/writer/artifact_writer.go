// Package writer は年別成果物とカバレッジレポートの書き出し、および成果物の公開を行います。
package writer

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"flightweather/flightweather/domain/entity"
	exception "flightweather/pkg/batch/util/exception"
	"flightweather/pkg/batch/util/table"
)

// ArtifactWriter は年別成果物を書き出します。
type ArtifactWriter interface {
	// Extension はファイルの拡張子 (ドットを含む) を返します。
	Extension() string
	// Write は records を OutputColumns の列順で w に書き出します。
	Write(w io.Writer, records []entity.EnrichedFlightRecord) error
}

// NewArtifactWriter は format (csv または arrow) に対応する ArtifactWriter を返します。
func NewArtifactWriter(format string) (ArtifactWriter, error) {
	switch format {
	case "", "csv":
		return CSVWriter{}, nil
	case "arrow":
		return ArrowWriter{RecordBatchSize: defaultRecordBatchSize}, nil
	default:
		return nil, exception.NewBatchErrorf("writer", "未対応の出力形式です: %s", format, exception.ErrInvalidConfig)
	}
}

// columns は records を列ごとの値に並べ替えます。
func columns(records []entity.EnrichedFlightRecord) [][]string {
	names := entity.OutputColumns()
	cols := make([][]string, len(names))
	for i := range cols {
		cols[i] = make([]string, len(records))
	}
	for r := range records {
		for c, v := range records[r].Values() {
			cols[c][r] = v
		}
	}
	return cols
}

// CSVWriter は成果物を CSV で書き出します。欠損は空のセルになります。
type CSVWriter struct{}

func (CSVWriter) Extension() string { return ".csv" }

func (CSVWriter) Write(w io.Writer, records []entity.EnrichedFlightRecord) error {
	df, err := table.Build(entity.OutputColumns(), columns(records))
	if err != nil {
		return exception.NewBatchError("writer", "成果物の DataFrame を作成できません", err, false, false)
	}
	if err := df.WriteCSV(w); err != nil {
		return exception.NewBatchError("writer", "CSV の書き出しに失敗しました", err, false, false)
	}
	return nil
}

const defaultRecordBatchSize = 64 * 1024

// ArrowWriter は成果物を Arrow IPC ファイル形式で書き出します。
// すべての列は null 許容の文字列で、欠損は null になります。
type ArrowWriter struct {
	RecordBatchSize int
}

func (ArrowWriter) Extension() string { return ".arrow" }

// Schema は成果物の Arrow スキーマを返します。
func (ArrowWriter) Schema() *arrow.Schema {
	names := entity.OutputColumns()
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		fields[i] = arrow.Field{Name: n, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func (a ArrowWriter) Write(w io.Writer, records []entity.EnrichedFlightRecord) error {
	size := a.RecordBatchSize
	if size <= 0 {
		size = defaultRecordBatchSize
	}
	mem := memory.NewGoAllocator()
	schema := a.Schema()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return exception.NewBatchError("writer", "Arrow ファイルを作成できません", err, false, false)
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		for _, rec := range records[start:end] {
			for i, v := range rec.Values() {
				sb := b.Field(i).(*array.StringBuilder)
				if v == "" {
					sb.AppendNull()
				} else {
					sb.Append(v)
				}
			}
		}
		batch := b.NewRecord()
		err := fw.Write(batch)
		batch.Release()
		if err != nil {
			fw.Close()
			return exception.NewBatchError("writer", "Arrow レコードバッチの書き出しに失敗しました", err, false, false)
		}
	}

	if err := fw.Close(); err != nil {
		return exception.NewBatchError("writer", "Arrow ファイルのクローズに失敗しました", err, false, false)
	}
	return nil
}
