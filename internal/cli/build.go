package cli

import (
	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/fileutil"
	"github.com/skelly-dev/codr/internal/indexer"
	"github.com/skelly-dev/codr/internal/languages"
)

func RunBuild(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	e, err := loadEnv(cmd, path)
	if err != nil {
		return err
	}
	langs, err := ParseLanguageFilter(cmd)
	if err != nil {
		return err
	}
	if len(langs) > 0 {
		e.cfg.Languages = langs
		if err := e.cfg.Validate(); err != nil {
			return err
		}
	}
	return buildIndex(cmd, e)
}

func buildIndex(cmd *cobra.Command, e *env) error {
	progress := newProgressReporter("indexing", cmd.ErrOrStderr(), e.asJSON)
	ix := indexer.New(e.cfg, languages.NewDefaultRegistry(), e.logger, indexer.WithProgress(progress.Update))

	report, err := ix.Build(commandContext(cmd), e.root)
	progress.Done()
	if err != nil {
		return err
	}
	if e.asJSON {
		return fileutil.PrintJSON(e.out, report)
	}
	PrintBuildReport(e.out, report)
	return nil
}
