package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/httputil"
	"github.com/wonny/consolidator/pkg/logger"
)

// LocalSink copies artifacts into a directory (mirror / staging area)
type LocalSink struct {
	dir    string
	logger *logger.Logger
}

// NewLocalSink creates a sink writing under dir
func NewLocalSink(dir string, log *logger.Logger) *LocalSink {
	return &LocalSink{dir: dir, logger: log}
}

// Name implements contracts.ArtifactSink
func (s *LocalSink) Name() string { return "local" }

// Upload copies localPath to dir/remoteName through a temp file and rename
func (s *LocalSink) Upload(ctx context.Context, localPath, remoteName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validRemoteName(remoteName); err != nil {
		return err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(remoteName))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create sink dir: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create sink file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close sink file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sink file: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"local":  localPath,
		"remote": dst,
	}).Debug("Artifact copied")
	return nil
}

// HubSink uploads artifacts to a dataset repository on a hub endpoint.
// Each artifact is one authenticated PUT of the raw file bytes.
type HubSink struct {
	client   *httputil.Client
	endpoint string
	repo     string
	revision string
	logger   *logger.Logger
}

// HubOptions configures a HubSink
type HubOptions struct {
	Endpoint string // e.g. https://huggingface.co
	Repo     string // owner/name
	Revision string // default "main"
}

// NewHubSink creates a hub sink. The client must already carry auth
// (httputil.Client.WithBearerToken).
func NewHubSink(client *httputil.Client, opts HubOptions, log *logger.Logger) (*HubSink, error) {
	if opts.Repo == "" {
		return nil, fmt.Errorf("hub repo is required")
	}
	if _, err := url.Parse(opts.Endpoint); err != nil || opts.Endpoint == "" {
		return nil, fmt.Errorf("invalid hub endpoint %q", opts.Endpoint)
	}
	if opts.Revision == "" {
		opts.Revision = "main"
	}
	return &HubSink{
		client:   client,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		repo:     opts.Repo,
		revision: opts.Revision,
		logger:   log,
	}, nil
}

// Name implements contracts.ArtifactSink
func (s *HubSink) Name() string { return "hf" }

// UploadURL is the target of one artifact upload
func (s *HubSink) UploadURL(remoteName string) string {
	return fmt.Sprintf("%s/api/datasets/%s/upload/%s/%s",
		s.endpoint, s.repo, url.PathEscape(s.revision), escapePath(remoteName))
}

// Upload implements contracts.ArtifactSink
func (s *HubSink) Upload(ctx context.Context, localPath, remoteName string) error {
	if err := validRemoteName(remoteName); err != nil {
		return err
	}

	target := s.UploadURL(remoteName)
	resp, err := s.client.PutFile(ctx, target, localPath, "application/octet-stream")
	if err != nil {
		return fmt.Errorf("upload %s: %w", remoteName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UploadError{
			RemoteName: remoteName,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"remote": remoteName,
		"status": resp.StatusCode,
	}).Info("🚀 Artifact uploaded")
	return nil
}

// UploadError is a non-2xx answer from the hub
type UploadError struct {
	RemoteName string
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload %s: %s", e.RemoteName, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upload %s: %d %s", e.RemoteName, e.StatusCode, e.Body)
}

func validRemoteName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid remote name %q", name)
	}
	return nil
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var (
	_ contracts.ArtifactSink = (*LocalSink)(nil)
	_ contracts.ArtifactSink = (*HubSink)(nil)
)
