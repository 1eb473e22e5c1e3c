// Package upload reassembles files from independently-uploaded chunks.
//
// Each chunk is persisted as uploads/{uploadId}/chunks/chunk_{index}.part
// under the scratch root. Once all chunks are present, Complete streams them
// in index order into a single assembled file and removes the chunk files.
package upload

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/scribeworks/scribed/internal/tmpstore"
)

// chunkPattern matches recognized chunk filenames and captures the index.
var chunkPattern = regexp.MustCompile(`^chunk_(\d+)\.part$`)

// chunkFilePerm is the permission mode for persisted chunk files.
const chunkFilePerm = 0640

// Assembler receives and reassembles chunked uploads. Writes within a single
// process are serialized so Complete never observes a half-written chunk
// directory.
type Assembler struct {
	store *tmpstore.Store

	mu sync.Mutex
}

// New creates an Assembler backed by the given scratch store.
func New(store *tmpstore.Store) *Assembler {
	return &Assembler{store: store}
}

// chunksDir returns the relative scratch subdir holding an upload's chunks.
func chunksDir(uploadID string) string {
	return path.Join("uploads", uploadID, "chunks")
}

// ReceiveChunk persists one chunk of an upload. Re-uploading the same index
// overwrites the previous payload. Empty payloads and negative indices are
// rejected with ErrInvalidInput.
func (a *Assembler) ReceiveChunk(uploadID string, index int, r io.Reader) error {
	if uploadID == "" {
		return fmt.Errorf("%w: empty upload id", ErrInvalidInput)
	}
	if index < 0 {
		return fmt.Errorf("%w: negative chunk index %d", ErrInvalidInput, index)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read chunk %d: %w", index, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: chunk %d is empty", ErrInvalidInput, index)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	subdir := chunksDir(tmpstore.Sanitize(uploadID))
	if _, err := a.store.EnsureDir(subdir); err != nil {
		return err
	}

	dest := a.store.AllocatePathExact(fmt.Sprintf("chunk_%d.part", index), subdir)
	if err := os.WriteFile(dest, data, chunkFilePerm); err != nil {
		return fmt.Errorf("write chunk %d: %w", index, err)
	}
	return nil
}

// Complete verifies that the chunks on disk are exactly {0 .. totalChunks-1}
// and streams them in index order into one assembled file, deleting each
// chunk immediately after it is written so peak disk usage stays bounded.
//
// On a missing chunk it returns a *MissingChunkError and leaves every chunk
// file on disk so the upload can be completed later. On a write failure the
// partial output file is removed.
func (a *Assembler) Complete(uploadID string, totalChunks int) (string, int64, error) {
	if uploadID == "" {
		return "", 0, fmt.Errorf("%w: empty upload id", ErrInvalidInput)
	}
	if totalChunks <= 0 {
		return "", 0, fmt.Errorf("%w: totalChunks must be positive, got %d", ErrInvalidInput, totalChunks)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := tmpstore.Sanitize(uploadID)
	chunkDir := filepath.Join(a.store.Root(), chunksDir(id))

	chunks, err := listChunks(chunkDir)
	if err != nil {
		return "", 0, err
	}
	if len(chunks) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrNoChunks, uploadID)
	}

	// Exactness check before touching anything: the chunks on disk must be
	// exactly {0 .. totalChunks-1}. A gap means the upload is incomplete; a
	// surplus means totalChunks undercounts and assembly would silently
	// truncate the file.
	byIndex := make(map[int]string, len(chunks))
	for _, c := range chunks {
		byIndex[c.index] = c.name
	}
	for i := 0; i < totalChunks; i++ {
		if _, ok := byIndex[i]; !ok {
			return "", 0, &MissingChunkError{Index: i}
		}
	}
	if len(byIndex) > totalChunks {
		return "", 0, fmt.Errorf("%w: %d chunk files on disk but totalChunks is %d",
			ErrInvalidInput, len(byIndex), totalChunks)
	}

	if _, err := a.store.EnsureDir("uploads"); err != nil {
		return "", 0, err
	}
	outPath := a.store.AllocatePath(fmt.Sprintf("upload_%s.tmp", id), "uploads")

	size, err := a.assemble(outPath, chunkDir, byIndex, totalChunks)
	if err != nil {
		_ = os.Remove(outPath) // no truncated output left behind
		return "", 0, err
	}

	// Chunk files are gone; drop the now-empty directories.
	_ = os.Remove(chunkDir)
	_ = os.Remove(filepath.Dir(chunkDir))

	return outPath, size, nil
}

// assemble writes chunks 0..n-1 into outPath, deleting each source chunk
// after its bytes are safely written.
func (a *Assembler) assemble(outPath, chunkDir string, byIndex map[int]string, n int) (int64, error) {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640) // #nosec G304 -- path is under the scratch root
	if err != nil {
		return 0, fmt.Errorf("create assembled file: %w", err)
	}

	var size int64
	for i := 0; i < n; i++ {
		chunkPath := filepath.Join(chunkDir, byIndex[i])
		data, err := os.ReadFile(chunkPath) // #nosec G304 -- listed from the scratch chunk dir
		if err != nil {
			_ = out.Close()
			return 0, fmt.Errorf("read chunk %d: %w", i, err)
		}
		written, err := out.Write(data)
		if err != nil {
			_ = out.Close()
			return 0, fmt.Errorf("write chunk %d: %w", i, err)
		}
		size += int64(written)
		_ = os.Remove(chunkPath) // bound peak disk usage to one chunk
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close assembled file: %w", err)
	}
	return size, nil
}

// chunkFile pairs a chunk filename with its parsed numeric index.
type chunkFile struct {
	name  string
	index int
}

// listChunks returns recognized chunk files sorted by numeric index,
// so chunk_2 sorts before chunk_10.
func listChunks(dir string) ([]chunkFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	var chunks []chunkFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		chunks = append(chunks, chunkFile{name: e.Name(), index: idx})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
	return chunks, nil
}

// SweepStale removes chunk directories of uploads whose files were last
// touched more than maxAge ago. Abandoned uploads otherwise accumulate
// forever in the scratch area.
func (a *Assembler) SweepStale(maxAge time.Duration) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	uploadsDir := filepath.Join(a.store.Root(), "uploads")
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(uploadsDir, e.Name())
		if newest, ok := newestModTime(dir); ok && newest.Before(cutoff) {
			if err := os.RemoveAll(dir); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// newestModTime walks an upload directory and reports the most recent
// modification time found. ok is false if the directory is unreadable.
func newestModTime(dir string) (time.Time, bool) {
	var newest time.Time
	found := false
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !found || info.ModTime().After(newest) {
			newest = info.ModTime()
			found = true
		}
		return nil
	})
	return newest, found
}
