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

package updater

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/theupdateframework/go-tuf/v2/metadata"
	"github.com/theupdateframework/go-tuf/v2/metadata/trustedmetadata"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
	"github.com/uptane/uptane-go/dir"
	"github.com/uptane/uptane-go/firmware"
	"github.com/uptane/uptane-go/log"
)

// TUFEngine validates repository metadata from the expanded bundle
// against each repository's persisted root of trust and promotes
// accepted roles into the trusted metadata directory.
//
// A TUFEngine is bound to one client directory and is not safe for
// concurrent use, matching the client that owns it.
type TUFEngine struct {
	paths  *dir.PathManager
	repos  []string
	pinned map[string]keyutil.PublicKey

	present  map[string]bool
	targets  map[string]map[string]firmware.Target
	versions map[string]int64
}

// NewTUFEngine returns an engine for the given repositories, rooted at
// the client directory paths resolves into.
func NewTUFEngine(paths *dir.PathManager, repos []string) *TUFEngine {
	return &TUFEngine{
		paths:    paths,
		repos:    repos,
		pinned:   make(map[string]keyutil.PublicKey),
		present:  make(map[string]bool),
		targets:  make(map[string]map[string]firmware.Target),
		versions: make(map[string]int64),
	}
}

// WithPinnedTargetsKey switches repo to partial verification: its
// targets role is verified directly against key instead of through the
// repository's root chain. Used by partial-verification Secondaries
// for the Director repository.
func (e *TUFEngine) WithPinnedTargetsKey(repo string, key keyutil.PublicKey) *TUFEngine {
	e.pinned[repo] = key
	return e
}

// Refresh implements Engine.
func (e *TUFEngine) Refresh(ctx context.Context, trustedTime time.Time) (*RefreshResult, error) {
	logger := log.GetLogger(ctx)
	result := &RefreshResult{}

	e.present = make(map[string]bool)
	for _, repo := range e.repos {
		if _, err := os.Stat(e.paths.UnverifiedMetadata(repo)); errors.Is(err, os.ErrNotExist) {
			logger.Infof("bundle carries no metadata for repository %s", repo)
			continue
		}
		e.present[repo] = true

		e.loadVersionFloor(repo)
		var err error
		if key, ok := e.pinned[repo]; ok {
			err = e.refreshPartial(repo, key, trustedTime)
		} else {
			err = e.refreshFull(repo, trustedTime)
		}
		if err != nil {
			return nil, uptane.MetadataError{Repo: repo, Err: err}
		}
		logger.Debugf("refreshed trusted metadata for repository %s", repo)
		result.Refreshed = append(result.Refreshed, repo)
	}
	return result, nil
}

// HasRepository implements Engine.
func (e *TUFEngine) HasRepository(repo string) bool {
	return e.present[repo]
}

// Targets implements Engine.
func (e *TUFEngine) Targets(repo string) map[string]firmware.Target {
	return e.targets[repo]
}

// refreshFull walks the root, timestamp, snapshot, targets chain for
// one repository.
func (e *TUFEngine) refreshFull(repo string, trustedTime time.Time) error {
	rootData, err := os.ReadFile(e.paths.CurrentRole(repo, "root"))
	if err != nil {
		return fmt.Errorf("missing trusted root metadata: %w", err)
	}
	trusted, err := trustedmetadata.New(rootData)
	if err != nil {
		return err
	}
	trusted.RefTime = trustedTime

	// Accept a newer root from the bundle before anything else; the
	// rest of the chain may be signed by rotated keys.
	if newRoot, err := os.ReadFile(e.paths.UnverifiedRole(repo, "root")); err == nil {
		peek, err := metadata.Root().FromBytes(newRoot)
		if err != nil {
			return err
		}
		if peek.Signed.Version > trusted.Root.Signed.Version {
			if _, err := trusted.UpdateRoot(newRoot); err != nil {
				return err
			}
			if err := e.persist(repo, "root", newRoot); err != nil {
				return err
			}
		}
	}

	// Re-seed the rollback floors from the roles accepted before a
	// restart. Load failures are tolerated: an expired local role still
	// loads for rollback protection, and a missing one means this is
	// the first refresh.
	if data, err := os.ReadFile(e.paths.CurrentRole(repo, "timestamp")); err == nil {
		_, _ = trusted.UpdateTimestamp(data)
	}
	if trusted.Timestamp != nil {
		if data, err := os.ReadFile(e.paths.CurrentRole(repo, "snapshot")); err == nil {
			_, _ = trusted.UpdateSnapshot(data, true)
		}
	}

	timestampData, err := os.ReadFile(e.paths.UnverifiedRole(repo, "timestamp"))
	if err != nil {
		return fmt.Errorf("bundle is missing the timestamp role: %w", err)
	}
	if _, err := trusted.UpdateTimestamp(timestampData); err != nil {
		// A bundle re-delivering the already trusted timestamp is not a
		// failure; the trusted copy stays in effect.
		var equal *metadata.ErrEqualVersionNumber
		if !errors.As(err, &equal) {
			return err
		}
	} else if err := e.persist(repo, "timestamp", timestampData); err != nil {
		return err
	}

	snapshotData, err := os.ReadFile(e.paths.UnverifiedRole(repo, "snapshot"))
	if err != nil {
		return fmt.Errorf("bundle is missing the snapshot role: %w", err)
	}
	if _, err := trusted.UpdateSnapshot(snapshotData, false); err != nil {
		return err
	}
	if err := e.persist(repo, "snapshot", snapshotData); err != nil {
		return err
	}

	targetsData, err := os.ReadFile(e.paths.UnverifiedRole(repo, "targets"))
	if err != nil {
		return fmt.Errorf("bundle is missing the targets role: %w", err)
	}
	targetsMd, err := trusted.UpdateTargets(targetsData)
	if err != nil {
		return err
	}
	if targetsMd.Signed.Version < e.versions[repo] {
		return fmt.Errorf("targets version rolled back from %d to %d", e.versions[repo], targetsMd.Signed.Version)
	}
	if err := e.persist(repo, "targets", targetsData); err != nil {
		return err
	}

	e.versions[repo] = targetsMd.Signed.Version
	e.targets[repo] = convertTargets(targetsMd.Signed.Targets)
	return nil
}

// refreshPartial verifies only the targets role, directly against the
// pinned key. Partial verification trades the full chain for a single
// pinned signature on resource-constrained Secondaries.
func (e *TUFEngine) refreshPartial(repo string, key keyutil.PublicKey, trustedTime time.Time) error {
	targetsData, err := os.ReadFile(e.paths.UnverifiedRole(repo, "targets"))
	if err != nil {
		return fmt.Errorf("bundle is missing the targets role: %w", err)
	}
	md, err := metadata.Targets().FromBytes(targetsData)
	if err != nil {
		return err
	}
	canonical, err := cjson.EncodeCanonical(md.Signed)
	if err != nil {
		return err
	}
	verified := false
	for _, sig := range md.Signatures {
		if key.Verify(canonical, sig.Signature) {
			verified = true
			break
		}
	}
	if !verified {
		return errors.New("targets role is not signed by the pinned director key")
	}
	if md.Signed.IsExpired(trustedTime) {
		return errors.New("targets role is expired")
	}
	if md.Signed.Version < e.versions[repo] {
		return fmt.Errorf("targets version rolled back from %d to %d", e.versions[repo], md.Signed.Version)
	}
	if err := e.persist(repo, "targets", targetsData); err != nil {
		return err
	}

	e.versions[repo] = md.Signed.Version
	e.targets[repo] = convertTargets(md.Signed.Targets)
	return nil
}

// loadVersionFloor seeds the targets rollback floor from the persisted
// trusted targets role. The in-memory floor alone would be forgotten
// across a process restart, exactly when a replayed older bundle would
// otherwise be accepted.
func (e *TUFEngine) loadVersionFloor(repo string) {
	if e.versions[repo] != 0 {
		return
	}
	data, err := os.ReadFile(e.paths.CurrentRole(repo, "targets"))
	if err != nil {
		return
	}
	md, err := metadata.Targets().FromBytes(data)
	if err != nil {
		return
	}
	e.versions[repo] = md.Signed.Version
}

func (e *TUFEngine) persist(repo, role string, data []byte) error {
	if err := os.MkdirAll(e.paths.Metadata(repo), 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.paths.CurrentRole(repo, role), data, 0o644)
}

// convertTargets maps go-tuf target files into the client's firmware
// target model.
func convertTargets(files map[string]*metadata.TargetFiles) map[string]firmware.Target {
	out := make(map[string]firmware.Target, len(files))
	for path, tf := range files {
		hashes := make(map[string]string, len(tf.Hashes))
		for algorithm, digest := range tf.Hashes {
			hashes[algorithm] = hex.EncodeToString(digest)
		}
		target := firmware.Target{
			FileInfo: firmware.FileInfo{
				Filepath: path,
				Hashes:   hashes,
				Length:   tf.Length,
			},
		}
		if tf.Custom != nil {
			var custom map[string]json.RawMessage
			if err := json.Unmarshal(*tf.Custom, &custom); err == nil {
				target.Custom = custom
			}
		}
		out[path] = target
	}
	return out
}
