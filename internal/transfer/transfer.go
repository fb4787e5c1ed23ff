// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package transfer moves files to and from SSH targets over SFTP. It rides
// the same dial and host-key verification path as the interactive
// transport, so a target that would prompt in a session prompts here too.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/logging"
	"golang.org/x/crypto/ssh"
)

// Progress is called as bytes move; total is 0 when the size is unknown.
type Progress func(written, total int64)

// Transferrer holds an authenticated SSH connection and its SFTP channel.
type Transferrer struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// New dials and authenticates per cfg, verifying the host key against
// store and prompting through p for unknown or changed keys.
func New(ctx context.Context, cfg conn.SSHConfig, store conn.HostKeyStore, p conn.TrustPrompter) (*Transferrer, error) {
	client, err := conn.NewSSHClient(ctx, cfg, store, p)
	if err != nil {
		return nil, err
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Transferrer{client: client, sftp: sftpClient}, nil
}

// Close releases the SFTP channel and the SSH connection.
func (t *Transferrer) Close() {
	if t.sftp != nil {
		_ = t.sftp.Close()
	}
	if t.client != nil {
		_ = t.client.Close()
	}
}

// Push uploads a local file. It writes to a temporary name next to the
// destination and renames into place so a broken transfer never leaves a
// half-written file under the final name.
func (t *Transferrer) Push(localPath, remotePath string, progress Progress) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	total := info.Size()

	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}
	if stat, err := t.sftp.Stat(remotePath); err == nil && stat.IsDir() {
		remotePath = path.Join(remotePath, filepath.Base(localPath))
	}

	tmpPath := fmt.Sprintf("%s.wireline-upload", remotePath)
	dst, err := t.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating remote %s: %w", tmpPath, err)
	}

	written, err := copyWithProgress(dst, src, total, progress)
	cerr := dst.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = t.sftp.Remove(tmpPath)
		return fmt.Errorf("uploading %s: %w", localPath, err)
	}

	// Rename-over-existing needs posix semantics on some servers; fall
	// back to remove-then-rename.
	if err := t.sftp.PosixRename(tmpPath, remotePath); err != nil {
		_ = t.sftp.Remove(remotePath)
		if err := t.sftp.Rename(tmpPath, remotePath); err != nil {
			_ = t.sftp.Remove(tmpPath)
			return fmt.Errorf("moving %s into place: %w", remotePath, err)
		}
	}

	logging.Infof("transfer: pushed %s to %s (%d bytes)", localPath, remotePath, written)
	return nil
}

// Fetch downloads a remote file. The local file is written to a temporary
// name and renamed into place once complete.
func (t *Transferrer) Fetch(remotePath, localPath string, progress Progress) error {
	src, err := t.sftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("opening remote %s: %w", remotePath, err)
	}
	defer func() { _ = src.Close() }()

	var total int64
	if info, err := src.Stat(); err == nil {
		total = info.Size()
	}

	if localPath == "" {
		localPath = path.Base(remotePath)
	}
	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		localPath = filepath.Join(localPath, path.Base(remotePath))
	}

	tmpPath := localPath + ".wireline-download"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}

	written, err := copyWithProgress(dst, src, total, progress)
	cerr := dst.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("downloading %s: %w", remotePath, err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("moving %s into place: %w", localPath, err)
	}

	logging.Infof("transfer: fetched %s to %s (%d bytes)", remotePath, localPath, written)
	return nil
}

// copyWithProgress is io.Copy with a callback per chunk.
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress Progress) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}
