// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/stacksnap/internal/models"
)

// Well-known names inside a bag directory.
const (
	BagDirName       = "bag"
	ManifestFileName = "manifest.json"
	ChecksumSuffix   = ".sha256"
	BagSuffix        = ".contents.tar.gz"
)

// Paths is the deterministic layout of one snapshot component. Absolute
// fields live under the private root; Relative fields are relative to it
// and double as the target of private:// URIs.
type Paths struct {
	Owner       string
	MachineName string
	Timestamp   int64
	Date        string
	Bundle      models.Bundle
	TypeTag     string

	// BackupDir is <root><subpath>/<owner>/<machine>/<date>/<ts>.
	BackupDir   string
	RelativeDir string

	// ContentDir is BackupDir/<typeTag>.
	ContentDir         string
	RelativeContentDir string

	// BaseName is <machine>--<ts>--<typeTag>.
	BaseName     string
	TarFile      string
	ChecksumFile string

	// DumpFile is BaseName plus the bundle's dump extension.
	DumpFile string

	BagDir             string
	RelativeBagDir     string
	BagFile            string
	BagChecksumFile    string
	RelativeBagFile    string
	RelativeBagSumFile string
	ManifestPath       string

	// PublicBagURL is the web path for downloading the bag.
	PublicBagURL string
}

// DateOf formats the UTC date directory for a timestamp.
func DateOf(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// BagFileName returns <machine>--<ts>.contents.tar.gz.
func BagFileName(machineName string, ts int64) string {
	return machineName + "--" + strconv.FormatInt(ts, 10) + BagSuffix
}

// PlanPaths computes the layout. It does not touch the filesystem.
func PlanPaths(privateRoot, snapshotSubpath, publicURLBase, owner, machineName string, ts int64, bundle models.Bundle) Paths {
	info := models.LookupBundle(bundle)
	stamp := strconv.FormatInt(ts, 10)
	date := DateOf(ts)

	relDir := path.Join(strings.Trim(snapshotSubpath, "/"), owner, machineName, date, stamp)
	root := strings.TrimRight(privateRoot, "/")
	base := machineName + "--" + stamp + "--" + info.TypeTag
	bagFile := BagFileName(machineName, ts)

	p := Paths{
		Owner:       owner,
		MachineName: machineName,
		Timestamp:   ts,
		Date:        date,
		Bundle:      bundle,
		TypeTag:     info.TypeTag,

		BackupDir:   root + "/" + relDir,
		RelativeDir: relDir,

		RelativeContentDir: path.Join(relDir, info.TypeTag),

		BaseName:     base,
		TarFile:      base + ".tar.gz",
		ChecksumFile: base + ".tar.gz" + ChecksumSuffix,
		DumpFile:     base + info.Extension,

		RelativeBagDir:  path.Join(relDir, BagDirName),
		BagFile:         bagFile,
		BagChecksumFile: bagFile + ChecksumSuffix,
	}
	p.ContentDir = root + "/" + p.RelativeContentDir
	p.BagDir = root + "/" + p.RelativeBagDir
	p.RelativeBagFile = path.Join(p.RelativeBagDir, bagFile)
	p.RelativeBagSumFile = p.RelativeBagFile + ChecksumSuffix
	p.ManifestPath = p.BagDir + "/" + ManifestFileName
	p.PublicBagURL = strings.TrimRight(publicURLBase, "/") + "/" + p.RelativeBagFile
	return p
}

// ContentRef is the path of a content file relative to the bag directory.
func ContentRef(typeTag, fileName string) string {
	return "../" + typeTag + "/" + fileName
}

// Target places component dumps inside one snapshot.
type Target struct {
	Owner               string
	SnapshotMachineName string
	Timestamp           int64
}
