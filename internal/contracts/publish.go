package contracts

import "context"

// Artifact is one finished output file ready for publication
type Artifact struct {
	Kind       Kind   `json:"kind,omitempty"`
	Year       int    `json:"year,omitempty"`
	LocalPath  string `json:"local_path"`
	RemoteName string `json:"remote_name"`
	SizeBytes  int64  `json:"size_bytes"`
}

// PublishSet maps local artifact paths to their logical remote names,
// in production order
type PublishSet []Artifact

// Add appends an artifact
func (p *PublishSet) Add(a Artifact) {
	*p = append(*p, a)
}

// ByKind returns the artifacts of one kind
func (p PublishSet) ByKind(kind Kind) []Artifact {
	var out []Artifact
	for _, a := range p {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// RemoteNames lists the logical names in order
func (p PublishSet) RemoteNames() []string {
	names := make([]string, 0, len(p))
	for _, a := range p {
		names = append(names, a.RemoteName)
	}
	return names
}

// ArtifactSink accepts (local path, logical name) pairs for remote publication
type ArtifactSink interface {
	Name() string
	Upload(ctx context.Context, localPath, remoteName string) error
}
