package collect

import (
	"fmt"
	"log/slog"
	"regexp"

	"gitlab.com/grometheus/gromet/pkg/sched"
)

/* Error type returned when a stage is named in the arguments but is not a
known stage. */
type ErrStageNotFound struct {
	stageName string
}

func (snf *ErrStageNotFound) Error() string {
	return fmt.Sprintf("stage %q not found", snf.stageName)
}

/* Error type returned if the supplier for a named stage returns an error. */
type ErrStageConstruction struct {
	stageName, arg string
	returnedErr    error
}

func (esc *ErrStageConstruction) Error() string {
	return fmt.Sprintf("failed to construct stage %q with arg %q: %v", esc.stageName, esc.arg, esc.returnedErr)
}
func (esc *ErrStageConstruction) Unwrap() error { return esc.returnedErr }

/* StageSupplier constructs the root task of a stage from its optional
argument. */
type StageSupplier func(arg string) (sched.Task, error)

/* Options carries the settings shared by every stage of a run. */
type Options struct {
	OutDir      string
	ManifestURL string
	/* When set, tag discovery is skipped and only this tag is processed. */
	DebugTag string
	/* Compress on-disk task result caches. */
	CompressCache bool
	Logger        *slog.Logger
}

var stageNameRegex = regexp.MustCompile(`^(?P<name>\w+)(?:\((?P<arg>.+)\))?$`)

/* Stages resolves stage names of the form name or name(arg) into their root
tasks. Stages sharing work share task instances, so requesting both "tags"
and "manifests" discovers the tag list once. */
func Stages(opts Options, names []string) ([]sched.Task, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var tagsTask sched.Task
	tags := func() sched.Task {
		if tagsTask == nil {
			tagsTask = NewManifestTagsTask(opts.OutDir, opts.ManifestURL, opts.DebugTag, logger)
		}
		return tagsTask
	}
	registered := map[string]StageSupplier{
		"tags": func(string) (sched.Task, error) { return tags(), nil },
		"manifests": func(string) (sched.Task, error) {
			return NewTagSearcherTask(opts.OutDir, tags(), opts.ManifestURL, logger), nil
		},
		"blueprints": func(arg string) (sched.Task, error) {
			if arg == "" {
				return nil, fmt.Errorf("the blueprints stage needs a source tree, aka blueprints(DIR)")
			}
			return NewBlueprintScanTask(opts.OutDir, arg, opts.CompressCache, logger)
		},
	}

	stages := make([]sched.Task, 0, len(names))
	for _, named := range names {
		matches := stageNameRegex.FindStringSubmatch(named)
		if matches == nil {
			return nil, &ErrStageNotFound{named}
		}
		stageName, arg := matches[stageNameRegex.SubexpIndex("name")], matches[stageNameRegex.SubexpIndex("arg")]
		supplier, ok := registered[stageName]
		if !ok {
			return nil, &ErrStageNotFound{stageName}
		}
		task, err := supplier(arg)
		if err != nil {
			return nil, &ErrStageConstruction{stageName, arg, err}
		}
		stages = append(stages, task)
	}
	return stages, nil
}
