// Package archive unpacks comic containers into per-archive working
// directories and repacks translated pages. CBZ and ZIP containers use the
// zip format directly; PDF input and output go through pdfcpu.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/comictl/comictl/internal/imgutil"
)

// maxEntrySize caps a single decompressed archive entry.
const maxEntrySize = 512 << 20

// Descriptor maps an unpacked archive to its extraction directory and the
// image paths extracted from it, in reading order.
type Descriptor struct {
	Path    string
	WorkDir string
	Images  []string
}

// Base returns the archive's file name without its extension, used to nest
// per-archive output directories.
func (d Descriptor) Base() string {
	name := filepath.Base(d.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Contains reports whether the image path was extracted from this archive.
func (d Descriptor) Contains(path string) bool {
	for _, img := range d.Images {
		if img == path {
			return true
		}
	}
	return false
}

// supported maps container extensions handled by Unpack and Make.
var supported = map[string]bool{
	".cbz": true,
	".zip": true,
	".pdf": true,
}

// IsArchive reports whether the path names a supported comic container.
func IsArchive(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// Unpack extracts the archive's images into destDir and returns their paths
// in reading order (sorted by entry name). Non-image entries are skipped.
func Unpack(path, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return unpackZip(path, destDir)
	case ".pdf":
		return unpackPDF(path, destDir)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Ext(path))
	}
}

func unpackZip(path, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	var images []string

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || !imgutil.IsSupported(entry.Name) {
			continue
		}

		// Flatten the entry path; reject traversal attempts.
		name := filepath.Base(filepath.Clean(entry.Name))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			continue
		}

		dest := filepath.Join(destDir, name)
		if err := extractEntry(entry, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}

		images = append(images, dest)
	}

	sort.Strings(images)

	return images, nil
}

func extractEntry(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dest) //nolint:gosec // G304: destination is inside the run's working directory
	if err != nil {
		return err
	}

	_, err = io.Copy(out, io.LimitReader(src, maxEntrySize))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	return err
}

func unpackPDF(path, destDir string) ([]string, error) {
	if err := api.ExtractImagesFile(path, destDir, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF %s: %w", path, err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted images: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if !entry.IsDir() && imgutil.IsSupported(entry.Name()) {
			images = append(images, filepath.Join(destDir, entry.Name()))
		}
	}

	sort.Strings(images)

	return images, nil
}

// Make packs every supported image under imageDir into a new container at
// outPath, whose extension selects the format. Pages are added in sorted
// filename order.
func Make(imageDir, outPath string) error {
	images, err := listImages(imageDir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images to pack under %s", imageDir)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".cbz", ".zip":
		return makeZip(images, outPath)
	case ".pdf":
		if err := api.ImportImagesFile(images, outPath, nil, nil); err != nil {
			return fmt.Errorf("failed to build PDF %s: %w", outPath, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(outPath))
	}
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var images []string
	for _, entry := range entries {
		if !entry.IsDir() && imgutil.IsSupported(entry.Name()) {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(images)

	return images, nil
}

func makeZip(images []string, outPath string) error {
	out, err := os.Create(outPath) //nolint:gosec // G304: output path derives from the run's output root
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", outPath, err)
	}

	zw := zip.NewWriter(out)

	for _, img := range images {
		if err := addZipEntry(zw, img); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return fmt.Errorf("failed to pack %s: %w", img, err)
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return out.Close()
}

func addZipEntry(zw *zip.Writer, path string) error {
	src, err := os.Open(path) //nolint:gosec // G304: packing files the run itself wrote
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}

	_, err = io.Copy(w, src)

	return err
}
