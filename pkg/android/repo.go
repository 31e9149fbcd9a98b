/* Package android talks to the Android Open Source Project git hosting:
listing release tags, cloning manifest snapshots, and walking checkouts. */
package android

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

/* DefaultManifestURL is the upstream platform manifest repository. */
const DefaultManifestURL = "https://android.googlesource.com/platform/manifest"

/* TagsForRepo lists every ref advertised by the remote at url, mapped to its
object hash. */
func TagsForRepo(url string) (map[string]string, error) {
	out, err := exec.Command("git", "ls-remote", url).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list refs for %s: %w", url, err)
	}
	return parseLsRemote(string(out)), nil
}

func parseLsRemote(out string) map[string]string {
	refs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		hash, ref, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		refs[ref] = hash
	}
	return refs
}

/* CleanedTags lists the Android release tags of the remote at url, sorted.
Only peeled android-* tags count; the peeled form points at the commit rather
than the tag object, and every proper release has one. */
func CleanedTags(url string) ([]string, error) {
	refs, err := TagsForRepo(url)
	if err != nil {
		return nil, err
	}
	return cleanTags(refs), nil
}

func cleanTags(refs map[string]string) []string {
	tags := make([]string, 0, len(refs))
	for ref := range refs {
		if !strings.HasPrefix(ref, "refs/tags/android-") || !strings.HasSuffix(ref, "^{}") {
			continue
		}
		tags = append(tags, strings.TrimSuffix(strings.TrimPrefix(ref, "refs/tags/"), "^{}"))
	}
	sort.Strings(tags)
	return tags
}

/* CloneManifest checks out the single branch (or tag) of the manifest
repository at url into dir, which must already exist. */
func CloneManifest(url, branch, dir string) error {
	cmd := exec.Command("git", "clone", "--depth=1", "--single-branch", "--branch", branch, url, ".")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to clone %s at %s: %w: %s", url, branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}

/* FileTree lists every path in the named branch of the repository at url,
without fetching any blob content. */
func FileTree(url, branch string) ([]string, error) {
	dir, err := os.MkdirTemp("", "gromet-tree-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	clone := exec.Command("git", "clone", "--filter=blob:none", "--depth=1", "--branch", branch, url, ".")
	clone.Dir = dir
	if out, err := clone.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("failed to clone %s at %s: %w: %s", url, branch, err, strings.TrimSpace(string(out)))
	}
	ls := exec.Command("git", "ls-tree", "-r", "HEAD", "--name-only")
	ls.Dir = dir
	out, err := ls.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list tree of %s at %s: %w", url, branch, err)
	}
	return strings.Split(strings.TrimRight(string(out), "\n"), "\n"), nil
}

/* IsTypicalTag reports whether tagDir looks like an ordinary manifest
checkout: exactly one xml file, named default.xml. A handful of historic tags
ship multiple manifests and need bespoke handling. */
func IsTypicalTag(tagDir string) (bool, error) {
	entries, err := os.ReadDir(tagDir)
	if err != nil {
		return false, err
	}
	xmlCount := 0
	hasDefault := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".xml") {
			xmlCount++
		}
		if e.Name() == "default.xml" {
			hasDefault = true
		}
	}
	return xmlCount == 1 && hasDefault, nil
}

/* SearchExtension lists every file under root whose name ends in ext. */
func SearchExtension(root, ext string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
