package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	exception "flightweather/pkg/batch/util/exception"
)

// StagedFile は書き込みを終えて改名を待っている一時ファイルです。
// Commit するまで最終的なパスには何も現れません。
type StagedFile struct {
	tmpPath  string
	path     string
	checksum string
	done     bool
}

// TempPath は一時ファイルのパスです。Commit 前のアップロードなどに使います。
func (s *StagedFile) TempPath() string { return s.tmpPath }

// Path は Commit 後のパスです。
func (s *StagedFile) Path() string { return s.path }

// Name は Commit 後のファイル名です。
func (s *StagedFile) Name() string { return filepath.Base(s.path) }

// Checksum は内容の SHA-256 (16 進数) です。
func (s *StagedFile) Checksum() string { return s.checksum }

// Commit は一時ファイルを最終的なパスに改名します。既存のファイルは置き換えられます。
func (s *StagedFile) Commit() error {
	if s.done {
		return nil
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return exception.NewBatchErrorf("writer", "'%s' への改名に失敗しました", s.path, err)
	}
	s.done = true
	return nil
}

// Discard は一時ファイルを削除します。Commit 済みの場合は何もしません。
func (s *StagedFile) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Stage は dir に一時ファイルを作成して write で書き込み、同期してから閉じます。
// write が失敗した場合は一時ファイルを削除します。
func Stage(dir, name string, write func(w io.Writer) error) (staged *StagedFile, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, exception.NewBatchErrorf("writer", "出力ディレクトリ '%s' を作成できません", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, exception.NewBatchErrorf("writer", "一時ファイルを作成できません", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	if err = write(io.MultiWriter(tmp, h)); err != nil {
		return nil, err
	}
	if err = tmp.Sync(); err != nil {
		return nil, exception.NewBatchErrorf("writer", "一時ファイルを同期できません", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, exception.NewBatchErrorf("writer", "一時ファイルをクローズできません", err)
	}
	return &StagedFile{
		tmpPath:  tmp.Name(),
		path:     filepath.Join(dir, name),
		checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
