// Copyright The Uptane Project Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dir defines the on-disk layout of one client's exclusive
// directory. Trusted role metadata lives under metadata/<repo>/current;
// the contents of the most recent bundle are expanded under
// unverified/<repo> until the update engine has validated them.
package dir

import (
	"fmt"
	"os"
	"path/filepath"
)

// RoleExtension is the filename extension of role metadata files.
const RoleExtension = ".json"

// PathManager resolves paths inside a client directory. Two client
// instances must never share one.
type PathManager struct {
	// Root is the client's directory (full_client_dir).
	Root string
}

// Metadata returns the trusted metadata directory of repo.
func (p *PathManager) Metadata(repo string) string {
	return filepath.Join(p.Root, "metadata", repo, "current")
}

// CurrentRole returns the path of a trusted role file, e.g.
// metadata/director/current/root.json.
func (p *PathManager) CurrentRole(repo, role string) string {
	return filepath.Join(p.Metadata(repo), role+RoleExtension)
}

// Unverified returns the directory the metadata bundle is expanded
// into.
func (p *PathManager) Unverified() string {
	return filepath.Join(p.Root, "unverified")
}

// UnverifiedMetadata returns the expanded-but-unvalidated metadata
// directory of repo.
func (p *PathManager) UnverifiedMetadata(repo string) string {
	return filepath.Join(p.Unverified(), repo, "metadata")
}

// UnverifiedRole returns the path of an unvalidated role file inside
// the expanded bundle.
func (p *PathManager) UnverifiedRole(repo, role string) string {
	return filepath.Join(p.UnverifiedMetadata(repo), role+RoleExtension)
}

// Bootstrap creates the trusted metadata directories and seeds each
// repository with its initial root metadata, the client's root of
// trust from the factory.
func (p *PathManager) Bootstrap(roots map[string][]byte) error {
	for repo, rootData := range roots {
		if err := os.MkdirAll(p.Metadata(repo), 0o755); err != nil {
			return fmt.Errorf("creating metadata directory for %s: %w", repo, err)
		}
		if err := os.WriteFile(p.CurrentRole(repo, "root"), rootData, 0o644); err != nil {
			return fmt.Errorf("seeding root metadata for %s: %w", repo, err)
		}
	}
	return nil
}
