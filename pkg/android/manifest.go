package android

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

/* Project is one repository entry of a repo manifest, with its remote and
revision fully resolved. */
type Project struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	Revision string `json:"revision"`
}

type xmlManifest struct {
	XMLName  xml.Name     `xml:"manifest"`
	Remotes  []xmlRemote  `xml:"remote"`
	Default  xmlDefault   `xml:"default"`
	Projects []xmlProject `xml:"project"`
}

type xmlRemote struct {
	Name     string `xml:"name,attr"`
	Fetch    string `xml:"fetch,attr"`
	Revision string `xml:"revision,attr"`
}

type xmlDefault struct {
	Remote   string `xml:"remote,attr"`
	Revision string `xml:"revision,attr"`
}

type xmlProject struct {
	Name     string `xml:"name,attr"`
	Path     string `xml:"path,attr"`
	Remote   string `xml:"remote,attr"`
	Revision string `xml:"revision,attr"`
}

/* ParseManifest resolves the repo manifest in data against the URL of the
manifest repository it came from. Relative remote fetch specs (the AOSP
manifest uses "..") resolve the way the repo tool resolves them, against
manifestURL. */
func ParseManifest(data []byte, manifestURL string) ([]Project, error) {
	var m xmlManifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed manifest: %w", err)
	}
	/* Resolution keeps the manifest URL slashless so a relative fetch spec
	drops the trailing "manifest" component; the AOSP default.xml relies on
	".." landing at the host root. */
	base, err := url.Parse(strings.TrimSuffix(manifestURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("bad manifest url %q: %w", manifestURL, err)
	}
	remotes := make(map[string]xmlRemote, len(m.Remotes))
	fetches := make(map[string]string, len(m.Remotes))
	for _, r := range m.Remotes {
		ref, err := url.Parse(strings.TrimSuffix(r.Fetch, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("bad fetch spec %q for remote %s: %w", r.Fetch, r.Name, err)
		}
		remotes[r.Name] = r
		fetches[r.Name] = base.ResolveReference(ref).String()
	}
	projects := make([]Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		remoteName := p.Remote
		if remoteName == "" {
			remoteName = m.Default.Remote
		}
		fetch, ok := fetches[remoteName]
		if !ok {
			return nil, fmt.Errorf("project %s references unknown remote %q", p.Name, remoteName)
		}
		revision := p.Revision
		if revision == "" {
			revision = remotes[remoteName].Revision
		}
		if revision == "" {
			revision = m.Default.Revision
		}
		path := p.Path
		if path == "" {
			path = p.Name
		}
		projects = append(projects, Project{
			Path:     path,
			URL:      fetch + p.Name,
			Revision: revision,
		})
	}
	return projects, nil
}

/* Projects reads default.xml of the manifest checkout in tagDir. */
func Projects(tagDir string) ([]Project, error) {
	data, err := os.ReadFile(filepath.Join(tagDir, "default.xml"))
	if err != nil {
		return nil, err
	}
	return ParseManifest(data, DefaultManifestURL)
}
