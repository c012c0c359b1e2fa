package main

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	txv "github.com/transitkit/validator"
)

const maxDocumentSize = 512 << 20

// loadDocuments expands the given paths into documents. A path may be an
// XML file, a zip archive whose XML members are loaded individually, or a
// directory walked for both. Member names keep the archive prefix so
// diagnostics stay traceable.
func loadDocuments(paths []string) ([]txv.Document, error) {
	var docs []txv.Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		switch {
		case info.IsDir():
			dirDocs, err := loadDirectory(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, dirDocs...)
		case isZip(path):
			zipDocs, err := loadZip(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, zipDocs...)
		default:
			doc, err := loadFile(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no XML documents found in %s", strings.Join(paths, ", "))
	}
	return docs, nil
}

func isZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

func isXML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xml")
}

func loadFile(path string) (txv.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return txv.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return txv.Document{FileName: path, Text: string(data)}, nil
}

func loadDirectory(dir string) ([]txv.Document, error) {
	var docs []txv.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case isXML(path):
			doc, err := loadFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		case isZip(path):
			zipDocs, err := loadZip(path)
			if err != nil {
				return err
			}
			docs = append(docs, zipDocs...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return docs, nil
}

func loadZip(path string) ([]txv.Document, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer archive.Close()

	var docs []txv.Document
	for _, member := range archive.File {
		if !isXML(member.Name) {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", member.Name, path, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxDocumentSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", member.Name, path, err)
		}
		docs = append(docs, txv.Document{
			FileName: path + "!" + member.Name,
			Text:     string(data),
		})
	}
	return docs, nil
}
