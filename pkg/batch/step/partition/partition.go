// Package partition は入力を固定サイズのバッチに分割し、固定数のワーカーで並列に処理します。
// 結果はバッチの分割順に連結され、ワーカーの完了順には依存しません。
package partition

import (
	exception "flightweather/pkg/batch/util/exception"
)

// Range は入力の連続した区間 [Start, End) と、そのバッチ番号を表します。
type Range struct {
	Index int
	Start int
	End   int
}

// Len は区間に含まれる要素数を返します。
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition は n 個の要素を size 個ずつの区間に分割します。
// 区間数は ceil(n/size) で、最後の区間だけが短くなることがあります。n が 0 の場合は空を返します。
func Partition(n, size int) ([]Range, error) {
	if size <= 0 {
		return nil, exception.NewBatchErrorf("partition", "バッチサイズは 1 以上でなければなりません: %d", size, exception.ErrInvalidConfig)
	}
	if n <= 0 {
		return nil, nil
	}
	ranges := make([]Range, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		ranges = append(ranges, Range{Index: len(ranges), Start: start, End: end})
	}
	return ranges, nil
}
