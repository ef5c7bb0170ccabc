package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brightpath/course-agent/knowledge"
	"github.com/brightpath/course-agent/store"
)

// Service feeds course scripts through the parser and chunker into the
// vector store, and mirrors course structure into the knowledge graph when
// a driver is configured.
type Service struct {
	store        store.Store
	driver       neo4j.DriverWithContext
	logger       *log.Logger
	chunkSize    int
	chunkOverlap int
}

func NewService(st store.Store, driver neo4j.DriverWithContext, logger *log.Logger, chunkSize, chunkOverlap int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}

	return &Service{
		store:        st,
		driver:       driver,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestDirectory ingests every supported course script under dir. A
// malformed document is logged and skipped; it never aborts the rest of the
// corpus. Courses whose exact title is already cataloged are skipped unless
// replaceExisting is set, since re-embedding an unchanged corpus on every
// startup is wasted provider calls.
func (s *Service) IngestDirectory(ctx context.Context, dir string, replaceExisting bool) (courses, chunks int, err error) {
	if s.store == nil {
		return 0, 0, fmt.Errorf("store not configured")
	}
	if _, err := os.Stat(dir); err != nil {
		return 0, 0, fmt.Errorf("docs directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return 0, 0, fmt.Errorf("walk docs directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no course documents found in %s", dir)
		return 0, 0, nil
	}

	for _, path := range entries {
		added, skipped, ingestErr := s.IngestFile(ctx, path, replaceExisting)
		if ingestErr != nil {
			s.logger.Printf("ingest failed for %s: %v", path, ingestErr)
			continue
		}
		if skipped {
			continue
		}
		courses++
		chunks += added
	}

	return courses, chunks, nil
}

// IngestFile ingests a single course script and returns the number of
// chunks written, or skipped=true when the course is already cataloged.
func (s *Service) IngestFile(ctx context.Context, path string, replaceExisting bool) (chunks int, skipped bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("read file: %w", err)
	}

	content, err := ExtractText(DetectFormat(path), data)
	if err != nil {
		return 0, false, fmt.Errorf("extract text: %w", err)
	}

	parsed, err := ParseCourseDocument(content)
	if err != nil {
		return 0, false, fmt.Errorf("parse course document: %w", err)
	}

	if !replaceExisting {
		if _, getErr := s.store.GetCourse(ctx, parsed.Course.Title); getErr == nil {
			s.logger.Printf("course %q already ingested, skipping %s", parsed.Course.Title, path)
			return 0, true, nil
		} else if !errors.Is(getErr, store.ErrCourseNotFound) {
			return 0, false, fmt.Errorf("check catalog: %w", getErr)
		}
	}

	courseChunks := BuildChunks(parsed, s.chunkSize, s.chunkOverlap)
	if len(courseChunks) == 0 {
		s.logger.Printf("skip empty document %s", path)
		return 0, true, nil
	}

	if err := s.store.AddCourse(ctx, parsed.Course, courseChunks); err != nil {
		return 0, false, fmt.Errorf("add course to store: %w", err)
	}

	if s.driver != nil {
		if err := knowledge.SyncCourse(ctx, s.driver, parsed.Course); err != nil {
			s.logger.Printf("sync knowledge graph for %q: %v", parsed.Course.Title, err)
		}
	}

	s.logger.Printf("ingested %q (%d lessons, %d chunks)", parsed.Course.Title, len(parsed.Lessons), len(courseChunks))
	return len(courseChunks), false, nil
}
