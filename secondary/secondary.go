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

// Package secondary implements the Secondary ECU client: the component
// that decides whether a time signal is fresh and authentic, whether a
// firmware update was consistently authorized by both the Director and
// the Image Repository, and what this ECU attests about its own state.
//
// A Secondary is not safe for concurrent use. It mutates nonce state,
// the trusted time window, and the assigned target across calls;
// callers must hold exclusive access for a full request/validate/
// process cycle. Two instances must never share a client directory.
package secondary

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"time"
	"unicode"

	uptane "github.com/uptane/uptane-go"
	"github.com/uptane/uptane-go/crypto/keyutil"
	"github.com/uptane/uptane-go/dir"
	"github.com/uptane/uptane-go/envelope"
	"github.com/uptane/uptane-go/firmware"
	"github.com/uptane/uptane-go/updater"
)

// Default repository names, matching the layout the Primary produces.
const (
	DefaultDirectorRepoName = "director"
	DefaultImageRepoName    = "imagerepo"
)

// Options configures a Secondary. FullClientDir, VIN, ECUSerial,
// ECUKey, InitialTime, TimeserverPublicKey, and FirmwareFileinfo are
// required; the rest default as documented.
type Options struct {
	// FullClientDir is this client's exclusive on-disk directory.
	FullClientDir string

	// DirectorRepoName and ImageRepoName name the two repositories in
	// the metadata bundle. Empty values select the defaults.
	DirectorRepoName string
	ImageRepoName    string

	// VIN identifies the vehicle; ECUSerial this ECU within it.
	VIN       string
	ECUSerial string

	// ECUKey signs the manifests this ECU emits.
	ECUKey keyutil.KeyPair

	// InitialTime is the bootstrap trusted time, an ISO 8601 timestamp
	// ("time since factory or last known good").
	InitialTime string

	// TimeserverPublicKey verifies time attestations.
	TimeserverPublicKey keyutil.PublicKey

	// FirmwareFileinfo describes the firmware currently installed.
	FirmwareFileinfo firmware.FileInfo

	// DirectorPublicKey is the pinned Director targets key. It must be
	// set exactly when PartialVerifying is true: partial verification
	// bypasses the root-of-trust chain and needs an explicit key, while
	// full verification derives its keys from root metadata and must
	// not be given one.
	DirectorPublicKey *keyutil.PublicKey
	PartialVerifying  bool

	// Engine overrides the metadata update engine. Defaults to a
	// TUFEngine bound to FullClientDir.
	Engine updater.Engine

	// Codec selects the wire form of documents this client signs and
	// verifies. Defaults to the canonical-JSON codec.
	Codec envelope.Codec

	// Rand is the nonce source. Defaults to crypto/rand. Tests may
	// supply a deterministic reader.
	Rand io.Reader
}

// Secondary is one ECU's validation core.
type Secondary struct {
	paths            *dir.PathManager
	directorRepoName string
	imageRepoName    string
	vin              string
	ecuSerial        string
	signer           *keyutil.Signer
	timeserverKey    keyutil.PublicKey
	directorKey      *keyutil.PublicKey
	partialVerifying bool
	codec            envelope.Codec
	engine           updater.Engine
	rand             io.Reader

	nonceNext     uint32
	lastNonceSent *uint32
	times         trustedTimes
	installed     firmware.FileInfo
	assigned      *firmware.Target
	attacks       []string
}

// New validates opts and constructs a Secondary. Field-level schema
// violations yield a FormatError before any state exists; a
// PartialVerifying flag that disagrees with DirectorPublicKey yields a
// ConfigurationError.
func New(opts Options) (*Secondary, error) {
	if opts.FullClientDir == "" {
		return nil, uptane.FormatError{Field: "full_client_dir", Msg: "must be a non-empty path"}
	}
	if !validIdentifier(opts.VIN) {
		return nil, uptane.FormatError{Field: "vin", Msg: "must be a non-empty identifier"}
	}
	if !validIdentifier(opts.ECUSerial) {
		return nil, uptane.FormatError{Field: "ecu_serial", Msg: "must be a non-empty identifier"}
	}
	if err := opts.ECUKey.Validate(); err != nil {
		return nil, uptane.FormatError{Field: "ecu_key", Msg: err.Error()}
	}
	initialTime, err := time.Parse(time.RFC3339, opts.InitialTime)
	if err != nil {
		return nil, uptane.FormatError{Field: "time", Msg: "must be an ISO 8601 timestamp"}
	}
	if err := opts.TimeserverPublicKey.Validate(); err != nil {
		return nil, uptane.FormatError{Field: "timeserver_public_key", Msg: err.Error()}
	}
	if opts.DirectorPublicKey != nil {
		if err := opts.DirectorPublicKey.Validate(); err != nil {
			return nil, uptane.FormatError{Field: "director_public_key", Msg: err.Error()}
		}
	}
	if opts.PartialVerifying != (opts.DirectorPublicKey != nil) {
		if opts.PartialVerifying {
			return nil, uptane.ConfigurationError{
				Msg: "partial verification requires a pinned director public key",
			}
		}
		return nil, uptane.ConfigurationError{
			Msg: "a director public key was provided without partial verification; full verification derives its keys from root metadata",
		}
	}
	if err := opts.FirmwareFileinfo.Validate(); err != nil {
		return nil, err
	}

	signer, err := keyutil.NewSigner(opts.ECUKey)
	if err != nil {
		return nil, err
	}

	directorRepo := opts.DirectorRepoName
	if directorRepo == "" {
		directorRepo = DefaultDirectorRepoName
	}
	imageRepo := opts.ImageRepoName
	if imageRepo == "" {
		imageRepo = DefaultImageRepoName
	}
	codec := opts.Codec
	if codec == nil {
		codec = envelope.JSON
	}
	randSource := opts.Rand
	if randSource == nil {
		randSource = rand.Reader
	}

	paths := &dir.PathManager{Root: opts.FullClientDir}
	engine := opts.Engine
	if engine == nil {
		tuf := updater.NewTUFEngine(paths, []string{directorRepo, imageRepo})
		if opts.PartialVerifying {
			tuf.WithPinnedTargetsKey(directorRepo, *opts.DirectorPublicKey)
		}
		engine = tuf
	}

	s := &Secondary{
		paths:            paths,
		directorRepoName: directorRepo,
		imageRepoName:    imageRepo,
		vin:              opts.VIN,
		ecuSerial:        opts.ECUSerial,
		signer:           signer,
		timeserverKey:    opts.TimeserverPublicKey,
		directorKey:      opts.DirectorPublicKey,
		partialVerifying: opts.PartialVerifying,
		codec:            codec,
		engine:           engine,
		rand:             randSource,
		installed:        opts.FirmwareFileinfo,
		// Seeded twice: once as the bootstrap trusted time, once as the
		// time associated with accepting this construction.
		times: trustedTimes{entries: []time.Time{initialTime, initialTime}},
	}
	if s.nonceNext, err = s.drawNonce(); err != nil {
		return nil, err
	}
	return s, nil
}

// VIN returns the vehicle identifier.
func (s *Secondary) VIN() string {
	return s.vin
}

// ECUSerial returns this ECU's serial.
func (s *Secondary) ECUSerial() string {
	return s.ecuSerial
}

// PartialVerifying reports whether the client runs in partial
// verification mode.
func (s *Secondary) PartialVerifying() bool {
	return s.partialVerifying
}

// InstalledFileinfo returns the fileinfo the client currently attests
// as installed.
func (s *Secondary) InstalledFileinfo() firmware.FileInfo {
	return s.installed
}

// AssignedTarget returns a copy of the target resolved by the last
// metadata processing cycle, or nil when no update is assigned.
func (s *Secondary) AssignedTarget() *firmware.Target {
	if s.assigned == nil {
		return nil
	}
	target := *s.assigned
	return &target
}

// NonceNext returns the freshness token to send with the next time
// request.
func (s *Secondary) NonceNext() uint32 {
	return s.nonceNext
}

// LastNonceSent returns the nonce most recently marked as sent, and
// whether one was sent at all.
func (s *Secondary) LastNonceSent() (uint32, bool) {
	if s.lastNonceSent == nil {
		return 0, false
	}
	return *s.lastNonceSent, true
}

// RotateNonce replaces the next nonce with a fresh random value. The
// last sent nonce is unaffected, so a still-outstanding time request
// remains answerable.
func (s *Secondary) RotateNonce() (uint32, error) {
	next, err := s.drawNonce()
	if err != nil {
		return 0, err
	}
	if next == s.nonceNext {
		// Negligible-probability repeat; one redraw keeps the rotation
		// guarantee strict.
		if next, err = s.drawNonce(); err != nil {
			return 0, err
		}
	}
	s.nonceNext = next
	return next, nil
}

// MarkNonceSent records that the current next nonce was transmitted.
// Calling it again without an intervening rotation is a no-op.
func (s *Secondary) MarkNonceSent() uint32 {
	nonce := s.nonceNext
	s.lastNonceSent = &nonce
	return nonce
}

func (s *Secondary) drawNonce() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(s.rand, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// TrustedTimeCount returns the length of the trusted time window.
func (s *Secondary) TrustedTimeCount() int {
	return s.times.count()
}

// LatestTrustedTime returns the most recent validated time.
func (s *Secondary) LatestTrustedTime() time.Time {
	return s.times.latest()
}

// OldestTrustedTime returns the bootstrap trusted time.
func (s *Secondary) OldestTrustedTime() time.Time {
	return s.times.oldest()
}

func (s *Secondary) recordAttack(report string) {
	s.attacks = append(s.attacks, report)
}

// trustedTimes is the append-only window of validated timeserver
// times. It is seeded at construction and never truncated, so latest
// and previous are always defined.
type trustedTimes struct {
	entries []time.Time
}

func (t *trustedTimes) append(ts time.Time) {
	t.entries = append(t.entries, ts)
}

func (t *trustedTimes) latest() time.Time {
	return t.entries[len(t.entries)-1]
}

func (t *trustedTimes) previous() time.Time {
	return t.entries[len(t.entries)-2]
}

func (t *trustedTimes) oldest() time.Time {
	return t.entries[0]
}

func (t *trustedTimes) count() int {
	return len(t.entries)
}

// validIdentifier accepts non-empty identifiers without whitespace or
// unprintable characters.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
