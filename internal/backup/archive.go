package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

type File struct {
	Name string
	Data []byte
}

func writeFile(tarWriter *tar.Writer, file File, modTime time.Time) error {
	err := tarWriter.WriteHeader(&tar.Header{
		Name:    file.Name,
		Mode:    0o644,
		Size:    int64(len(file.Data)),
		ModTime: modTime,
	})
	if err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tarWriter.Write(file.Data); err != nil {
		return fmt.Errorf("failed to write tar file: %w", err)
	}
	return nil
}

// Archive packs files into a tar.gz and returns it together with its
// hex encoded sha256.
func Archive(files []File, modTime time.Time) ([]byte, string, error) {
	var tgz bytes.Buffer
	tgzHash := sha256.New()
	gzipWriter := gzip.NewWriter(io.MultiWriter(&tgz, tgzHash))
	tarWriter := tar.NewWriter(gzipWriter)
	for _, file := range files {
		if err := writeFile(tarWriter, file, modTime); err != nil {
			return nil, "", fmt.Errorf("failed to add %s to tar archive: %w", file.Name, err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return tgz.Bytes(), hex.EncodeToString(tgzHash.Sum(nil)), nil
}

// Extract returns the files of an archive created by Archive.
func Extract(archive []byte) ([]File, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()
	tarReader := tar.NewReader(gzipReader)
	files := make([]File, 0)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		files = append(files, File{Name: header.Name, Data: data})
	}
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func verify(archive []byte, checksum string) error {
	if got := Checksum(archive); got != checksum {
		return fmt.Errorf("%w: got %s, expected %s", ErrChecksumMismatch, got, checksum)
	}
	return nil
}
