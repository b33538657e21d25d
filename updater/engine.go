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

// Package updater is the metadata update engine boundary. The client
// core talks to an Engine; this package also ships a production Engine
// that walks the root, timestamp, snapshot, targets chain of each
// repository with go-tuf.
package updater

import (
	"context"
	"time"

	"github.com/uptane/uptane-go/firmware"
)

// RefreshResult reports which repositories advanced during a refresh.
type RefreshResult struct {
	// Refreshed lists the repositories whose trusted metadata was
	// brought up to date, in refresh order.
	Refreshed []string
}

// Engine is the metadata update engine the client core delegates to.
// Implementations own the signature-chain, expiry, and rollback checks
// for repository metadata; the core never re-validates them.
type Engine interface {
	// Refresh advances trusted metadata for every repository that the
	// most recent bundle carried, using trustedTime for all expiry
	// decisions. A failure for any repository aborts the refresh.
	Refresh(ctx context.Context, trustedTime time.Time) (*RefreshResult, error)

	// HasRepository reports whether the most recent bundle carried
	// metadata for repo. A Director that has no repository for this
	// vehicle's VIN shows up here as absent, not as an error.
	HasRepository(repo string) bool

	// Targets returns the currently trusted targets of repo keyed by
	// filepath, or nil when the repository has none.
	Targets(repo string) map[string]firmware.Target
}
