package tasklet

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"flightweather/flightweather/step/writer"
	core "flightweather/pkg/batch/job/core"
	logger "flightweather/pkg/batch/util/logger"
)

// WriteArtifactTasklet は年別成果物を出力ディレクトリの一時ファイルに書き出します。
// 成果物が最終的なパスに現れるのは CommitArtifactsTasklet が改名した後です。
type WriteArtifactTasklet struct {
	noClose
	state *YearState
}

var _ core.Tasklet = (*WriteArtifactTasklet)(nil)

func NewWriteArtifactTasklet(state *YearState) *WriteArtifactTasklet {
	return &WriteArtifactTasklet{state: state}
}

func (t *WriteArtifactTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	if err := ctx.Err(); err != nil {
		return core.ExitStatusStopped, err
	}
	out := t.state.Config.Output
	aw, err := writer.NewArtifactWriter(out.Format)
	if err != nil {
		return core.ExitStatusFailed, err
	}

	name := out.FileName(t.state.Year) + aw.Extension()
	staged, err := writer.Stage(out.Dir, name, func(w io.Writer) error {
		return aw.Write(w, t.state.Records)
	})
	if err != nil {
		return core.ExitStatusFailed, err
	}
	t.state.Artifact = staged

	stepExecution.WriteCount = len(t.state.Records)
	stepExecution.ExecutionContext.Put(KeyArtifactChecksum, staged.Checksum())
	t.state.Recorder.AddRows(t.state.Year, "written", len(t.state.Records))
	logger.Infof("%d 年の成果物を '%s' に書き出しました (sha256: %s)。", t.state.Year, staged.TempPath(), staged.Checksum())
	return core.ExitStatusCompleted, nil
}

// CoverageReportTasklet は結合結果の集計を Excel ブックとして一時ファイルに書き出します。
type CoverageReportTasklet struct {
	noClose
	state *YearState
}

var _ core.Tasklet = (*CoverageReportTasklet)(nil)

func NewCoverageReportTasklet(state *YearState) *CoverageReportTasklet {
	return &CoverageReportTasklet{state: state}
}

func (t *CoverageReportTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	out := t.state.Config.Output
	report := writer.CoverageReport{Year: t.state.Year, Coverage: t.state.Coverage}
	name := out.FileName(t.state.Year) + "_coverage" + report.Extension()

	staged, err := writer.Stage(out.Dir, name, report.Write)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	t.state.Report = staged
	stepExecution.WriteCount = 1
	return core.ExitStatusCompleted, nil
}

// ArtifactPublisher は成果物をアップロードし、オブジェクトキーを返します。writer.Publisher が実装します。
type ArtifactPublisher interface {
	Publish(ctx context.Context, localPath, name string, metadata map[string]string) (string, error)
}

var _ ArtifactPublisher = (*writer.Publisher)(nil)

// PublishArtifactTasklet は書き出した成果物をオブジェクトストレージにアップロードします。
// アップロードは改名前の一時ファイルから行い、オブジェクト名は最終的なファイル名になります。
type PublishArtifactTasklet struct {
	noClose
	state     *YearState
	publisher ArtifactPublisher
}

var _ core.Tasklet = (*PublishArtifactTasklet)(nil)

func NewPublishArtifactTasklet(state *YearState, publisher ArtifactPublisher) *PublishArtifactTasklet {
	return &PublishArtifactTasklet{state: state, publisher: publisher}
}

func (t *PublishArtifactTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	a := t.state.Artifact
	key, err := t.publisher.Publish(ctx, a.TempPath(), a.Name(), map[string]string{
		"year":   strconv.Itoa(t.state.Year),
		"sha256": a.Checksum(),
	})
	if err != nil {
		return core.ExitStatusFailed, err
	}
	stepExecution.WriteCount = 1
	stepExecution.ExecutionContext.Put(KeyObjectKey, key)
	return core.ExitStatusCompleted, nil
}

// CommitArtifactsTasklet は一時ファイルを最終的なパスに改名します。ジョブの最後のステップです。
// レポートを先に、成果物を最後に改名するため、成果物があればその年の処理はすべて成功しています。
type CommitArtifactsTasklet struct {
	noClose
	state *YearState
}

var _ core.Tasklet = (*CommitArtifactsTasklet)(nil)

func NewCommitArtifactsTasklet(state *YearState) *CommitArtifactsTasklet {
	return &CommitArtifactsTasklet{state: state}
}

func (t *CommitArtifactsTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	if err := ctx.Err(); err != nil {
		return core.ExitStatusStopped, err
	}
	if r := t.state.Report; r != nil {
		if err := r.Commit(); err != nil {
			return core.ExitStatusFailed, err
		}
		stepExecution.ExecutionContext.Put(KeyCoverageReport, filepath.ToSlash(r.Path()))
	}

	a := t.state.Artifact
	if err := a.Commit(); err != nil {
		if r := t.state.Report; r != nil {
			os.Remove(r.Path())
		}
		return core.ExitStatusFailed, err
	}
	stepExecution.WriteCount = 1
	stepExecution.ExecutionContext.Put(KeyArtifactPath, a.Path())
	logger.Infof("%d 年の成果物 '%s' を確定しました。", t.state.Year, a.Path())
	return core.ExitStatusCompleted, nil
}

// StagedFilesListener はジョブが完了しなかった場合に未確定の一時ファイルを削除します。
type StagedFilesListener struct {
	state *YearState
}

var _ core.JobExecutionListener = (*StagedFilesListener)(nil)

func NewStagedFilesListener(state *YearState) *StagedFilesListener {
	return &StagedFilesListener{state: state}
}

func (l *StagedFilesListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {}

func (l *StagedFilesListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	if jobExecution.Status == core.BatchStatusCompleted {
		return
	}
	for _, f := range []*writer.StagedFile{l.state.Artifact, l.state.Report} {
		if f == nil {
			continue
		}
		if err := f.Discard(); err != nil {
			logger.Warnf("一時ファイル '%s' を削除できませんでした: %v", f.TempPath(), err)
		}
	}
}
