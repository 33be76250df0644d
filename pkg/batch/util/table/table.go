// Package table は CSV テーブルの読み書きを go-gota の DataFrame で行うためのヘルパーです。
//
// すべての列は文字列として読み込みます。型推論と NaN 置換は行わないので、
// 空のセルは空文字列のまま残り、値はファイルに書かれた通りに往復します。
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"

	exception "flightweather/pkg/batch/util/exception"
)

// Encoding は入力ファイルの文字コードです。
type Encoding int

const (
	UTF8 Encoding = iota
	Latin1
)

// ReadCSV は r から CSV を読み込みます。1 行目はヘッダーとして扱います。
// ヘッダーだけのテーブルは、ヘッダーの列を持つ 0 行の DataFrame になります。
func ReadCSV(r io.Reader, enc Encoding) (dataframe.DataFrame, error) {
	if enc == Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if len(records) == 1 {
		return Build(records[0], make([][]string, len(records[0])))
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return df, df.Err
	}
	return df, nil
}

// ReadCSVFile は path の CSV を読み込みます。
func ReadCSVFile(path string, enc Encoding) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer f.Close()
	return ReadCSV(f, enc)
}

// HasColumn は df に name の列があるかどうかを返します。
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// RequireColumns は df に cols がすべて存在することを確認します。
// 足りない列がある場合は ErrMissingColumn をラップした BatchError を返します。
func RequireColumns(df dataframe.DataFrame, module, source string, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !HasColumn(df, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return exception.NewBatchErrorf(module, "%s に必須カラム %v がありません", source, missing, exception.ErrMissingColumn)
	}
	return nil
}

// Column は name 列の値を返します。列が無い場合は nil を返します。
func Column(df dataframe.DataFrame, name string) []string {
	if !HasColumn(df, name) {
		return nil
	}
	return df.Col(name).Records()
}

// Build は列名と列ごとの値から DataFrame を組み立てます。
// すべての列は同じ長さでなければなりません。
func Build(names []string, columns [][]string) (dataframe.DataFrame, error) {
	if len(names) != len(columns) {
		return dataframe.DataFrame{}, fmt.Errorf("列名の数 (%d) と列の数 (%d) が一致しません", len(names), len(columns))
	}
	ss := make([]series.Series, len(names))
	for i, name := range names {
		ss[i] = series.New(columns[i], series.String, name)
	}
	df := dataframe.New(ss...)
	if df.Err != nil {
		return df, df.Err
	}
	return df, nil
}
