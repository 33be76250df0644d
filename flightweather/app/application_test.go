package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "flightweather/pkg/batch/util/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setup は 2020 年だけ入力がそろったディレクトリと、2020 年と 2021 年を処理する設定ファイルを作ります。
func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, "flights", "2020.csv"),
		"DayOfWeek,Origin,Dest,DepTime,CRSArrTime,ArrTime,CRSDepTime,CRSDepTime_Dest,Cancelled,Marketing_Airline_Network\n"+
			"3,AAA,AAA,905,1230,1228,2020-01-01 09:00:00,2020-01-01 12:30:00,0.0,AA\n")
	writeFile(t, filepath.Join(dir, "weather", "2020", "S1_2020.csv"),
		"DATE,HourlySeaLevelPressure\n2020-01-01T08:00:00,1010\n")
	writeFile(t, filepath.Join(dir, "closest.csv"), "airport_local_code,station_id\nAAA,S1\n")

	configPath = filepath.Join(dir, "application.yaml")
	writeFile(t, configPath, `
database:
  type: sqlite
  database: `+filepath.Join(dir, "batch.db")+`
  migrate: true
batch:
  years: [2021, 2020]
  batch_size: 10
  workers: 2
input:
  flights_pattern: `+filepath.Join(dir, "flights", "{year}.csv")+`
  weather_dir_pattern: `+filepath.Join(dir, "weather", "{year}")+`
  airport_station_map: `+filepath.Join(dir, "closest.csv")+`
output:
  dir: `+filepath.Join(dir, "out")+`
`)
	return dir, configPath
}

func TestRunApplication_FailingYearDoesNotBlockOthers(t *testing.T) {
	dir, configPath := setup(t)

	code := RunApplication(context.Background(), "", nil, configPath)
	assert.Equal(t, 1, code)
	assert.FileExists(t, filepath.Join(dir, "out", "2020_airport_weather.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "2021_airport_weather.csv"))
}

func TestRunApplication_AllYearsSucceed(t *testing.T) {
	dir, configPath := setup(t)
	t.Setenv("FLIGHTWX_BATCH_YEARS", "2020")

	assert.Equal(t, 0, RunApplication(context.Background(), "", nil, configPath))
	assert.FileExists(t, filepath.Join(dir, "out", "2020_airport_weather.csv"))
}

func TestRunApplication_InvalidConfig(t *testing.T) {
	_, configPath := setup(t)
	t.Setenv("FLIGHTWX_BATCH_WORKERS", "0")

	assert.Equal(t, 1, RunApplication(context.Background(), "", nil, configPath))
}

func TestRunApplication_CancelledContext(t *testing.T) {
	dir, configPath := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, RunApplication(ctx, "", nil, configPath))
	assert.NoFileExists(t, filepath.Join(dir, "out", "2020_airport_weather.csv"))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "FLIGHTWX_TEST_VALUE=loaded\n")
	t.Setenv("FLIGHTWX_TEST_VALUE", "")
	os.Unsetenv("FLIGHTWX_TEST_VALUE")

	loadEnv(path)
	assert.Equal(t, "loaded", os.Getenv("FLIGHTWX_TEST_VALUE"))
	loadEnv(filepath.Join(t.TempDir(), "missing.env"))
}
