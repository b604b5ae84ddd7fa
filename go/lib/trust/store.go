// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trust is the Trust Material Store (spec.md §4.1): an on-disk
// cache of TRC and certificate chain files, addressed by (ISD, AD,
// version). Writes are atomic (write-then-rename); readers tolerate
// missing files.
package trust

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/serrors"
)

// Store is the file-backed trust material store. The zero value is not
// usable; construct with New.
type Store struct {
	baseDir string
	cache   *cache.Cache
}

// New returns a Store rooted at baseDir. baseDir is created if missing.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, serrors.WrapStr("creating trust store directory", err)
	}
	return &Store{
		baseDir: baseDir,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// trcPath mirrors the teacher's get_trc_file_path layout:
// <local ISD>-<local AD>/trcs/ISD<target>-V<version>.trc
func (s *Store) trcPath(local addr.IsdAs, targetISD addr.ISD, version uint64) string {
	return filepath.Join(s.baseDir, local.String(), "trcs",
		fmt.Sprintf("ISD%d-V%d.trc", targetISD, version))
}

// certPath mirrors get_cert_file_path:
// <local ISD>-<local AD>/certs/ISD<isd>-AD<ad>-V<version>.crt
func (s *Store) certPath(local addr.IsdAs, target addr.IsdAs, version uint64) string {
	return filepath.Join(s.baseDir, local.String(), "certs",
		fmt.Sprintf("ISD%d-AD%d-V%d.crt", target.ISD, target.AD, version))
}

// HasTRC reports whether the given TRC is present on disk.
func (s *Store) HasTRC(local addr.IsdAs, targetISD addr.ISD, version uint64) bool {
	if _, found := s.cache.Get("trc:" + s.trcPath(local, targetISD, version)); found {
		return true
	}
	_, err := os.Stat(s.trcPath(local, targetISD, version))
	return err == nil
}

// LoadTRC reads the raw TRC bytes from disk.
func (s *Store) LoadTRC(local addr.IsdAs, targetISD addr.ISD, version uint64) ([]byte, error) {
	key := "trc:" + s.trcPath(local, targetISD, version)
	if v, found := s.cache.Get(key); found {
		return v.([]byte), nil
	}
	b, err := ioutil.ReadFile(s.trcPath(local, targetISD, version))
	if err != nil {
		return nil, serrors.WrapStr("loading TRC", err)
	}
	s.cache.SetDefault(key, b)
	return b, nil
}

// StoreTRC atomically persists raw TRC bytes.
func (s *Store) StoreTRC(local addr.IsdAs, targetISD addr.ISD, version uint64, raw []byte) error {
	path := s.trcPath(local, targetISD, version)
	if err := atomicWrite(path, raw); err != nil {
		return serrors.WrapStr("storing TRC", err)
	}
	s.cache.SetDefault("trc:"+path, raw)
	return nil
}

// HasCertChain reports whether the given certificate chain is present on
// disk.
func (s *Store) HasCertChain(local, target addr.IsdAs, version uint64) bool {
	if _, found := s.cache.Get("cert:" + s.certPath(local, target, version)); found {
		return true
	}
	_, err := os.Stat(s.certPath(local, target, version))
	return err == nil
}

// LoadCertChain reads the raw certificate chain bytes from disk.
func (s *Store) LoadCertChain(local, target addr.IsdAs, version uint64) ([]byte, error) {
	key := "cert:" + s.certPath(local, target, version)
	if v, found := s.cache.Get(key); found {
		return v.([]byte), nil
	}
	b, err := ioutil.ReadFile(s.certPath(local, target, version))
	if err != nil {
		return nil, serrors.WrapStr("loading certificate chain", err)
	}
	s.cache.SetDefault(key, b)
	return b, nil
}

// StoreCertChain atomically persists raw certificate chain bytes.
func (s *Store) StoreCertChain(local, target addr.IsdAs, version uint64, raw []byte) error {
	path := s.certPath(local, target, version)
	if err := atomicWrite(path, raw); err != nil {
		return serrors.WrapStr("storing certificate chain", err)
	}
	s.cache.SetDefault("cert:"+path, raw)
	return nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
