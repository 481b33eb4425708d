// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pypi

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/datawire/dlib/dlog"
)

// progressReader logs a line every chunk of bytes read, so that the
// snapshot download (a multi-gigabyte file on the real index) is visibly
// alive.
type progressReader struct {
	ctx   context.Context
	inner io.Reader
	total int64
	next  int64
}

const progressChunk = 64 << 20 // 64MiB

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	r.total += int64(n)
	if r.total >= r.next {
		dlog.Infof(r.ctx, "... %d MiB fetched", r.total>>20)
		r.next = r.total + progressChunk
	}
	return n, err
}

// DownloadSnapshot fetches the gzipped snapshot database from url into
// dbPath, atomically: the database appears at dbPath only once it has been
// fully fetched and decompressed.
func DownloadSnapshot(ctx context.Context, url, dbPath string) (err error) {
	dlog.Infof(ctx, "fetching index snapshot from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pypi.DownloadSnapshot: %s: unexpected HTTP status %q", url, resp.Status)
	}

	zr, err := gzip.NewReader(&progressReader{ctx: ctx, inner: resp.Body, next: progressChunk})
	if err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o777); err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), "."+filepath.Base(dbPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, zr); err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), dbPath); err != nil {
		return fmt.Errorf("pypi.DownloadSnapshot: %w", err)
	}
	dlog.Infof(ctx, "index snapshot written to %s", dbPath)
	return nil
}
