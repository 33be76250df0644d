package writer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/step/enricher"
	config "flightweather/pkg/batch/config"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

func sampleRecords() []entity.EnrichedFlightRecord {
	values := make([]string, len(entity.WeatherFields))
	values[0] = "FM-15"
	values[len(values)-1] = "7"
	obs := &entity.Observation{Time: time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC), Values: values}
	return []entity.EnrichedFlightRecord{
		{
			Flight: entity.FlightLeg{Columns: []string{"3", "JFK", "LAX", "905", "1230", "1228",
				"2020-01-01 09:00:00", "2020-01-01 12:30:00", "0.0", "AA"}},
			Departure: obs,
		},
		{
			Flight: entity.FlightLeg{Columns: []string{"3", "ORD", "JFK", "", "1500", "",
				"", "", "1.0", "UA"}},
			Arrival: obs,
		},
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(entity.OutputColumns(), ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "3,JFK,LAX,905,1230,1228,2020-01-01 09:00:00,2020-01-01 12:30:00,0.0,AA,FM-15,"))
	assert.True(t, strings.HasSuffix(lines[1], ",7,"+strings.Repeat(",", len(entity.WeatherFields)-1)))
	assert.True(t, strings.HasPrefix(lines[2], "3,ORD,JFK,,1500,,,,1.0,UA,"+strings.Repeat(",", len(entity.WeatherFields))+"FM-15"))

	var again bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&again, sampleRecords()))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestCSVWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, nil))
	assert.Equal(t, strings.Join(entity.OutputColumns(), ",")+"\n", buf.String())
}

func TestArrowWriter(t *testing.T) {
	var buf bytes.Buffer
	w := ArrowWriter{RecordBatchSize: 1}
	require.NoError(t, w.Write(&buf, sampleRecords()))

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, w.Schema().Equal(r.Schema()))
	require.Equal(t, 2, r.NumRecords())

	rec, err := r.Record(1)
	require.NoError(t, err)
	origin := rec.Column(1).(*array.String)
	assert.Equal(t, "ORD", origin.Value(0))
	depTime := rec.Column(3).(*array.String)
	assert.True(t, depTime.IsNull(0), "欠損は null")
}

func TestNewArtifactWriter(t *testing.T) {
	w, err := NewArtifactWriter("csv")
	require.NoError(t, err)
	assert.Equal(t, ".csv", w.Extension())
	w, err = NewArtifactWriter("arrow")
	require.NoError(t, err)
	assert.Equal(t, ".arrow", w.Extension())
	_, err = NewArtifactWriter("parquet")
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestStage_WriteFailureLeavesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	failure := errors.New("disk on fire")
	staged, err := Stage(dir, "2021.csv", func(w io.Writer) error {
		io.WriteString(w, "partial")
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.Nil(t, staged)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "一時ファイルも書きかけの成果物も残らない")
}

func TestStage_CommitAndDiscard(t *testing.T) {
	dir := t.TempDir()
	write := func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}

	staged, err := Stage(dir, "2020.csv", write)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "2020.csv"), "Commit するまで成果物は現れない")
	assert.FileExists(t, staged.TempPath())
	assert.Equal(t, "2020.csv", staged.Name())
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", staged.Checksum())

	require.NoError(t, staged.Commit())
	assert.FileExists(t, staged.Path())
	assert.NoError(t, staged.Discard(), "Commit 済みなら何もしない")
	assert.FileExists(t, staged.Path())

	discarded, err := Stage(dir, "2021.csv", write)
	require.NoError(t, err)
	require.NoError(t, discarded.Discard())
	assert.NoFileExists(t, discarded.TempPath())
	assert.NoFileExists(t, discarded.Path())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2020.csv", entries[0].Name())
}

func TestCoverageReport(t *testing.T) {
	report := CoverageReport{
		Year: 2020,
		Coverage: enricher.Coverage{
			Rows:               3,
			Departure:          enricher.LegCounts{Matched: 2, UnresolvedStation: 1},
			Arrival:            enricher.LegCounts{Matched: 1, NoTimestamp: 1, NoObservation: 1},
			UnresolvedAirports: map[string]int{"ZZZ": 1},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	year, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "2020", year)
	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Contains(t, rows, []string{"matched", "2", "1"})
	assert.Contains(t, rows, []string{"missing", "1", "2"})

	unresolved, err := f.GetRows(unresolvedSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"airport_code", "legs"}, {"ZZZ", "1"}}, unresolved)
}

type fakeStore struct {
	buckets map[string]bool
	objects map[string]string
	types   map[string]string
	failPut error
	puts    int
}

func (f *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.puts++
	if f.failPut != nil {
		return minio.UploadInfo{}, f.failPut
	}
	f.objects[bucket+"/"+object] = opts.UserMetadata["sha256"]
	f.types[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string]string{}, types: map[string]string{}}
}

func TestPublisher_Publish(t *testing.T) {
	store := newFakeStore()
	p := newPublisher(store, config.ObjectStoreConfig{Bucket: "artifacts", Prefix: "air_weather", BreakerTimeout: time.Minute})

	// 改名前の一時ファイルからでも最終的なファイル名でアップロードする
	key, err := p.Publish(context.Background(), "/tmp/out/.2020_airport_weather.csv.tmp-123", "2020_airport_weather.csv", map[string]string{"sha256": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "air_weather/2020_airport_weather.csv", key)
	assert.True(t, store.buckets["artifacts"])
	assert.Equal(t, "abc", store.objects["artifacts/air_weather/2020_airport_weather.csv"])
	assert.Equal(t, "text/csv", store.types["artifacts/air_weather/2020_airport_weather.csv"])
}

func TestPublisher_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	store := newFakeStore()
	store.failPut = errors.New("connection refused")
	p := newPublisher(store, config.ObjectStoreConfig{Bucket: "artifacts", BreakerMaxFailures: 3, BreakerTimeout: time.Minute})
	p.initialDelay = time.Millisecond

	_, err := p.Publish(context.Background(), "a.csv", "a.csv", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, store.puts)

	_, err = p.Publish(context.Background(), "a.csv", "a.csv", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, store.puts, "サーキットが開いている間はアップロードしない")
	assert.True(t, exception.IsTemporary(err))
}
