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

package secondary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/firmware"
	"github.com/uptane/uptane-go/internal/archive"
	"github.com/uptane/uptane-go/log"
	"github.com/uptane/uptane-go/manifest"
	"github.com/uptane/uptane-go/timeserver"
)

// ValidateTimeAttestation checks a wire time attestation and, on
// success, appends its time to the trusted time window. Order matters:
// parse, then signature, then freshness. A fresh-looking nonce on a
// forged statement proves nothing, so the signature is judged first.
//
// On any rejection the trusted time window is left untouched. A
// correctly signed attestation answering the wrong nonce is recorded
// as a detected attack for the next manifest.
func (s *Secondary) ValidateTimeAttestation(ctx context.Context, data []byte) error {
	logger := log.GetLogger(ctx)

	doc, att, err := timeserver.Decode(s.codec, data)
	if err != nil {
		return err
	}

	if s.lastNonceSent == nil {
		if err := s.codec.Verify(doc, s.timeserverKey); err != nil {
			return err
		}
		return uptane.BadTimeAttestationError{
			Msg: "no nonce has been sent; the attestation's freshness cannot be judged",
		}
	}

	if err := timeserver.Verify(s.codec, doc, att, s.timeserverKey, *s.lastNonceSent); err != nil {
		var bad uptane.BadTimeAttestationError
		if errors.As(err, &bad) {
			s.recordAttack(fmt.Sprintf(
				"time attestation with a valid signature did not answer nonce %d", *s.lastNonceSent))
			logger.Warnf("time attestation rejected: %v", err)
		}
		return err
	}

	s.times.append(att.Time)
	logger.Debugf("trusted time advanced to %s", att.Time.UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}

// ProcessMetadata expands the metadata archive at archivePath, refreshes
// trusted metadata for every repository the bundle carries, and
// reconciles the Director's instruction for this ECU against the Image
// Repository. Any previously assigned target is cleared first; an
// assignment survives only if both repositories agree on the image.
//
// A bundle without Director metadata, or without an instruction for
// this ECU, is not an error. It means no update is pending.
func (s *Secondary) ProcessMetadata(ctx context.Context, archivePath string) error {
	logger := log.GetLogger(ctx)
	s.assigned = nil

	// Repository presence must reflect only this bundle; a previous
	// bundle's leftovers would make an omitted repository look present.
	if err := os.RemoveAll(s.paths.Unverified()); err != nil {
		return uptane.MetadataError{Err: fmt.Errorf("clearing previous metadata bundle: %w", err)}
	}
	if err := archive.ExtractZip(archivePath, s.paths.Unverified()); err != nil {
		return uptane.MetadataError{Err: fmt.Errorf("expanding metadata archive: %w", err)}
	}

	if _, err := s.engine.Refresh(ctx, s.times.latest()); err != nil {
		return err
	}

	if !s.engine.HasRepository(s.directorRepoName) {
		logger.Infof("no director metadata for vehicle %s; no update pending", s.vin)
		return nil
	}

	var assigned *firmware.Target
	for _, target := range s.engine.Targets(s.directorRepoName) {
		if target.ECUSerial() == s.ecuSerial {
			instruction := target
			assigned = &instruction
			break
		}
	}
	if assigned == nil {
		logger.Debugf("director metadata carries no instruction for ECU %s", s.ecuSerial)
		return nil
	}

	corroborating, ok := s.engine.Targets(s.imageRepoName)[assigned.Filepath]
	if !ok || !corroborating.FileInfo.Equal(assigned.FileInfo) {
		s.recordAttack(fmt.Sprintf(
			"director instruction for %s is not corroborated by the image repository", assigned.Filepath))
		logger.Warnf("discarding director instruction for %s: the image repository disagrees", assigned.Filepath)
		return nil
	}

	s.assigned = assigned
	logger.Infof("update assigned for ECU %s: %s", s.ecuSerial, assigned.Filepath)
	return nil
}

// ValidateImage checks candidate firmware bytes against the currently
// assigned target. On success the target's fileinfo becomes the
// installed image reported by subsequent manifests.
func (s *Secondary) ValidateImage(ctx context.Context, content []byte) (firmware.FileInfo, error) {
	logger := log.GetLogger(ctx)

	if s.assigned == nil {
		return firmware.FileInfo{}, uptane.ImageValidationError{
			Msg: "no update target is currently assigned",
		}
	}
	if err := s.assigned.FileInfo.Verify(content); err != nil {
		logger.Warnf("image rejected: %v", err)
		return firmware.FileInfo{}, err
	}

	s.installed = s.assigned.FileInfo
	logger.Infof("image validated and recorded as installed: %s", s.installed.Filepath)
	return s.installed, nil
}

// GenerateManifest signs a fresh ECU version manifest over the client's
// current state: the installed image, the two most recent trusted
// times, and every attack detected so far. Manifests are regenerated on
// each call, never reused.
func (s *Secondary) GenerateManifest(ctx context.Context) ([]byte, error) {
	logger := log.GetLogger(ctx)

	m := &manifest.ECUVersionManifest{
		ECUSerial:              s.ecuSerial,
		InstalledImage:         s.installed,
		AttacksDetected:        strings.Join(s.attacks, "; "),
		TimeserverTime:         s.times.latest(),
		PreviousTimeserverTime: s.times.previous(),
	}
	wire, err := manifest.Sign(m, s.codec, s.signer)
	if err != nil {
		return nil, err
	}
	logger.Debugf("signed version manifest for ECU %s", s.ecuSerial)
	return wire, nil
}
