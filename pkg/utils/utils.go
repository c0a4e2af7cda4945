// Package utils downloads and caches the remote data files the viewer and
// server start from: land outlines and GeoIP databases.
package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

// CacheDir is where downloaded files are kept between runs.
var CacheDir = "data/cache"

// progressWriter logs every progressStep bytes written under the caller's
// log prefix.
type progressWriter struct {
	w      io.Writer
	prefix string
	name   string
	n      int64
	logged int64
}

const progressStep = 5 << 20

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	if p.n-p.logged >= progressStep {
		log.Printf("%s %s: %d MB so far", p.prefix, p.name, p.n>>20)
		p.logged = p.n
	}
	return n, err
}

func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	}
	return fmt.Errorf("bad status: %s", resp.Status)
}

// DownloadFile saves src at dst. The body goes to a temp file next to dst and
// is renamed into place once complete.
func DownloadFile(src, dst, logPrefix string) error {
	resp, err := http.Get(src)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	pw := &progressWriter{w: tmp, prefix: logPrefix, name: filepath.Base(dst)}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	log.Printf("%s Saved %s (%d KB)", logPrefix, dst, pw.n>>10)
	return os.Rename(tmp.Name(), dst)
}

// CacheFileName is the name src is cached under. The log prefix is folded in
// so two sources with the same base name don't collide.
func CacheFileName(src, logPrefix string) string {
	name := src
	if u, err := url.Parse(src); err == nil {
		name = u.Path
	}
	name = path.Base(name)

	tag := strings.ReplaceAll(strings.Trim(logPrefix, "[]"), " ", "_")
	if tag == "" {
		return name
	}
	return tag + "_" + name
}

// Open returns a reader for src. With useCache the file is downloaded into
// CacheDir on first use and read from disk afterwards; otherwise the
// response body is streamed.
func Open(src string, useCache bool, logPrefix string) (io.ReadCloser, error) {
	if !useCache {
		log.Printf("%s Streaming from %s", logPrefix, src)
		resp, err := http.Get(src)
		if err != nil {
			return nil, err
		}
		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp.Body, nil
	}

	if err := os.MkdirAll(CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	local := filepath.Join(CacheDir, CacheFileName(src, logPrefix))
	switch _, err := os.Stat(local); {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("%s Downloading %s", logPrefix, src)
		if err := DownloadFile(src, local, logPrefix); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		log.Printf("%s Using cached %s", logPrefix, local)
	}
	return os.Open(local)
}
