/* Package collect implements the data gathering pipeline: discovering
Android release tags, cloning manifest snapshots, extracting their project
lists, and scanning Blueprint source trees. */
package collect

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"gitlab.com/kyle_anderson/go-utils/pkg/uerrors"
	"gitlab.com/kyle_anderson/go-utils/pkg/umath"

	"gitlab.com/grometheus/gromet/pkg/android"
	"gitlab.com/grometheus/gromet/pkg/blueprint"
	"gitlab.com/grometheus/gromet/pkg/sched"
)

/* Clones of busy release tags fail transiently fairly often; retry this many
times before declaring the tag unobtainable. */
const cloneRetries = 64

/* ManifestTagsTask lists the release tags of the manifest repository and
records them in manifest_tags.json. When only is set the network is skipped
entirely and the single named tag is used, which keeps debugging runs fast. */
type ManifestTagsTask struct {
	sched.Base
	repoURL string
	only    string
	logger  *slog.Logger
}

func NewManifestTagsTask(outDir, repoURL, only string, logger *slog.Logger) *ManifestTagsTask {
	return &ManifestTagsTask{Base: sched.NewBase(outDir), repoURL: repoURL, only: only, logger: logger}
}

func (t *ManifestTagsTask) Run(h sched.Handler, args []any) (any, error) {
	outDir := args[0].(string)
	var tags []string
	if t.only != "" {
		t.logger.Warn("tag override active, skipping tag discovery", "tag", t.only)
		tags = []string{t.only}
	} else {
		var err error
		if tags, err = android.CleanedTags(t.repoURL); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(filepath.Join(outDir, "manifest_tags.json"))
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tags); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return tags, nil
}

/* CloneManifestTask clones one release tag of the manifest repository into
tagDir. An existing tagDir counts as an already-complete clone and fulfills
the task without any work. */
type CloneManifestTask struct {
	sched.Base
	repoURL string
	tagDir  string
}

func NewCloneManifestTask(repoURL, tagDir, tag string) *CloneManifestTask {
	return &CloneManifestTask{Base: sched.NewBase(tagDir, tag), repoURL: repoURL, tagDir: tagDir}
}

func (t *CloneManifestTask) CanFulfill() bool {
	_, err := os.Stat(t.tagDir)
	return err == nil
}

func (t *CloneManifestTask) Fulfill(sched.Handler) (any, error) {
	return t.tagDir, nil
}

func (t *CloneManifestTask) Run(h sched.Handler, args []any) (any, error) {
	tagDir, tag := args[0].(string), args[1].(string)
	if err := os.MkdirAll(filepath.Dir(tagDir), 0o755); err != nil {
		return nil, err
	}
	if err := os.Mkdir(tagDir, 0o755); err != nil {
		return nil, err
	}
	var lastErr error
	for i := 0; i < cloneRetries; i++ {
		if lastErr = android.CloneManifest(t.repoURL, tag, tagDir); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("cannot clone manifest for %s, retries exceeded: %w", tag, lastErr)
	}
	/* Only the manifest files matter; the git metadata dwarfs them. */
	if err := os.RemoveAll(filepath.Join(tagDir, ".git")); err != nil {
		return nil, err
	}
	return tagDir, nil
}

/* ErrTagExtract is the error type reported for a manifest checkout whose
project list could not be read. */
type ErrTagExtract struct {
	TagDir string
	Err    error
}

func (e *ErrTagExtract) Error() string {
	return fmt.Sprintf("failed to extract projects from %s: %v", e.TagDir, e.Err)
}
func (e *ErrTagExtract) Unwrap() error { return e.Err }

/* ExtractProjectsTask parses the manifest checkouts produced by its clone
dependencies and writes the combined project lists to
manifest_projects.json.gz. */
type ExtractProjectsTask struct {
	sched.Base
	logger *slog.Logger
}

func NewExtractProjectsTask(outDir string, clones []sched.Task, logger *slog.Logger) *ExtractProjectsTask {
	args := make([]any, 0, len(clones)+1)
	args = append(args, outDir)
	for _, c := range clones {
		args = append(args, c)
	}
	return &ExtractProjectsTask{Base: sched.NewBase(args...), logger: logger}
}

type tagProjects struct {
	tag      string
	projects []android.Project
}

func (t *ExtractProjectsTask) Run(h sched.Handler, args []any) (any, error) {
	outDir := args[0].(string)
	tagDirs := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		tagDirs = append(tagDirs, a.(string))
	}

	numJobs := umath.Min(runtime.NumCPU()+2, len(tagDirs))
	if numJobs < 1 {
		numJobs = 1
	}
	wg := &sync.WaitGroup{}
	wg.Add(numJobs)
	jobs := make(chan string, numJobs)
	results := make(chan tagProjects, numJobs)
	errs := make(chan *ErrTagExtract, numJobs) // No need to close, wouldn't signal anything
	for i := 0; i < numJobs; i++ {
		go func() {
			t.extract(jobs, results, errs)
			wg.Done()
		}()
	}
	collectedErrs := uerrors.CollectChan(errs)

	byTag := make(map[string][]android.Project)
	collectorDone := make(chan struct{})
	go func() {
		for r := range results {
			byTag[r.tag] = r.projects
		}
		close(collectorDone)
	}()

	for _, tagDir := range tagDirs {
		jobs <- tagDir
	}
	close(jobs)
	wg.Wait()
	/* errs and results can safely be closed here as all writers have
	terminated. */
	close(errs)
	close(results)
	<-collectorDone
	if err := (<-collectedErrs).Materialize(); err != nil {
		return nil, err
	}

	path := filepath.Join(outDir, "manifest_projects.json.gz")
	if err := writeProjects(path, byTag); err != nil {
		return nil, err
	}
	return path, nil
}

func (t *ExtractProjectsTask) extract(jobs <-chan string, results chan<- tagProjects, errs chan<- *ErrTagExtract) {
	for tagDir := range jobs {
		typical, err := android.IsTypicalTag(tagDir)
		if err != nil {
			errs <- &ErrTagExtract{tagDir, err}
			continue
		}
		tag := filepath.Base(tagDir)
		if !typical {
			t.logger.Warn("tag does not seem typical, skipping", "tag", tag)
			continue
		}
		projects, err := android.Projects(tagDir)
		if err != nil {
			errs <- &ErrTagExtract{tagDir, err}
			continue
		}
		results <- tagProjects{tag, projects}
	}
}

func writeProjects(path string, byTag map[string][]android.Project) error {
	/* The union of all tags is large; deduplicate through an encoded key and
	keep the output order stable. */
	seen := make(map[string]android.Project)
	for _, projects := range byTag {
		for _, p := range projects {
			key, err := json.Marshal(p)
			if err != nil {
				return err
			}
			seen[string(key)] = p
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	all := make([]android.Project, 0, len(keys))
	for _, k := range keys {
		all = append(all, seen[k])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	err = enc.Encode(map[string]any{
		"projects_by_tag": byTag,
		"all_projects":    all,
	})
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

/* TagSearcherTask fans the discovered tags out into one clone per tag and
one extraction over all of them. */
type TagSearcherTask struct {
	sched.Base
	repoURL string
	logger  *slog.Logger
}

func NewTagSearcherTask(outDir string, tags sched.Task, repoURL string, logger *slog.Logger) *TagSearcherTask {
	return &TagSearcherTask{Base: sched.NewBase(outDir, tags), repoURL: repoURL, logger: logger}
}

func (t *TagSearcherTask) Run(h sched.Handler, args []any) (any, error) {
	outDir := args[0].(string)
	tags, ok := args[1].([]string)
	if !ok {
		return nil, fmt.Errorf("expected a tag list, got %T", args[1])
	}
	clones := make([]sched.Task, len(tags))
	for i, tag := range tags {
		clones[i] = NewCloneManifestTask(t.repoURL, filepath.Join(outDir, "manifests", tag), tag)
	}
	h.Emit(NewExtractProjectsTask(outDir, clones, t.logger))
	return nil, nil
}

/* NewBlueprintScanTask builds a task ingesting the Blueprint tree at root,
resolving defaults, and recording the resulting module registry. The result
is cached on disk under outDir/blueprints, so rescans of an unchanged tree
cost one stat. */
func NewBlueprintScanTask(outDir, root string, compress bool, logger *slog.Logger) (sched.Task, error) {
	cacheDir := filepath.Join(outDir, "blueprints")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Base(filepath.Clean(root)) + ".json"
	if compress {
		name += ".gz"
	}
	inner := &blueprintScanTask{Base: sched.NewBase(root), logger: logger}
	return sched.FileCached(filepath.Join(cacheDir, name), compress, inner)
}

type blueprintScanTask struct {
	sched.Base
	logger *slog.Logger
}

func (t *blueprintScanTask) Run(h sched.Handler, args []any) (any, error) {
	root := args[0].(string)
	reg := blueprint.NewRegistry(t.logger)
	if err := reg.IngestDir(root); err != nil {
		return nil, err
	}
	reg.ComputeDefaults()
	return reg, nil
}
