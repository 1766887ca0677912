// Copyright 2024 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pkgarchive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// CondaMetadata is the outer metadata.json member of a .conda archive
// (spec.md §6).
type CondaMetadata struct {
	CondaPkgFormatVersion int `json:"conda_pkg_format_version"`
}

// ZstdPreset names one of the conda-standard compression presets; an
// explicit integer level in [-7, 22] is also accepted (spec.md §4.8).
type ZstdPreset string

const (
	ZstdMin     ZstdPreset = "min"
	ZstdDefault ZstdPreset = "default"
	ZstdMax     ZstdPreset = "max"
)

// CondaOptions controls .conda archive compression (spec.md §4.8: "Zstd
// compression level configurable from a named preset ... or integer ...;
// compression threads are tunable").
type CondaOptions struct {
	Level   ZstdPreset
	Threads int
}

func (o CondaOptions) encoderLevel() zstd.EncoderLevel {
	switch o.Level {
	case ZstdMin:
		return zstd.SpeedFastest
	case ZstdMax:
		return zstd.SpeedBestCompression
	case "", ZstdDefault:
		return zstd.SpeedDefault
	default:
		if n, err := strconv.Atoi(string(o.Level)); err == nil {
			return zstd.EncoderLevelFromZstd(n)
		}
		return zstd.SpeedDefault
	}
}

// WriteConda assembles name-version-build.conda: an outer uncompressed,
// sequential ZIP container holding metadata.json plus the two zstd-compressed
// inner tars (spec.md §6 "conda format v2").
func WriteConda(w io.Writer, name, version, build string, entries []Entry, in Inputs, opts CondaOptions) error {
	infoEntries, pkgEntries := splitInfoPayload(entries)

	infoTar, err := compressedTar(infoEntries, in.SourceDateEpoch.Unix(), opts)
	if err != nil {
		return fmt.Errorf("building info tar.zst: %w", err)
	}
	pkgTar, err := compressedTar(pkgEntries, in.SourceDateEpoch.Unix(), opts)
	if err != nil {
		return fmt.Errorf("building pkg tar.zst: %w", err)
	}

	metadata, err := marshalJSON(CondaMetadata{CondaPkgFormatVersion: 2})
	if err != nil {
		return fmt.Errorf("marshaling conda metadata.json: %w", err)
	}

	suffix := fmt.Sprintf("%s-%s-%s", name, version, build)
	zw := zip.NewWriter(w)

	members := []struct {
		name    string
		content []byte
	}{
		{"metadata.json", metadata},
		{"info-" + suffix + ".tar.zst", infoTar},
		{"pkg-" + suffix + ".tar.zst", pkgTar},
	}
	for _, m := range members {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Store})
		if err != nil {
			return fmt.Errorf("creating %s member: %w", m.name, err)
		}
		if _, err := fw.Write(m.content); err != nil {
			return fmt.Errorf("writing %s member: %w", m.name, err)
		}
	}
	return zw.Close()
}

func splitInfoPayload(entries []Entry) (info, pkg []Entry) {
	for _, e := range entries {
		if strings.HasPrefix(e.Path, "info/") {
			info = append(info, e)
		} else {
			pkg = append(pkg, e)
		}
	}
	return info, pkg
}

func compressedTar(entries []Entry, epochUnix int64, opts CondaOptions) ([]byte, error) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	epoch := timeFromUnix(epochUnix)
	if err := writeEntriesToTar(tw, entries, epoch); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	zstdOpts := []zstd.EOption{zstd.WithEncoderLevel(opts.encoderLevel())}
	if opts.Threads > 0 {
		zstdOpts = append(zstdOpts, zstd.WithEncoderConcurrency(opts.Threads))
	}
	enc, err := zstd.NewWriter(nil, zstdOpts...)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(tarBuf.Bytes(), nil), nil
}

func timeFromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
