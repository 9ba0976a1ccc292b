package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"tg-exchange/internal/exchange"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/storage"
)

// Status is what the node tells MANAGE about itself.
type Status struct {
	Groups       int    `json:"groups"`
	Lacking      int    `json:"lacking"`
	Enforcements int64  `json:"enforcements_24h"`
	Hidden       bool   `json:"hidden"`
	Uptime       string `json:"uptime"`
}

func (s *Service) Status() Status {
	st := Status{
		Groups: len(s.store.GroupIDs()),
		Hidden: s.transport.Hidden(),
		Uptime: s.now().Sub(s.started).Truncate(time.Second).String(),
	}
	for _, gid := range s.store.GroupIDs() {
		if s.store.IsLacking(gid) {
			st.Lacking++
		}
	}
	if s.counter != nil {
		n, err := s.counter.CountSince(s.now().Add(-24 * time.Hour))
		if err != nil {
			logger.Warningf("Count enforcements: %v", err)
		}
		st.Enforcements = n
	}
	return st
}

func (s *Service) writeStatus() (string, error) {
	return s.writeJSON("status-*.json", s.Status())
}

// writeJSON stores v in a new file under the tmp directory.
func (s *Service) writeJSON(pattern string, v any) (string, error) {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.cfg.Store.TmpDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.cfg.Store.TmpDir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		removeFile(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		removeFile(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warningf("Remove %s: %v", path, err)
	}
}

// ShareIgnoreList tells CAPTCHA and TIP which groups have no subscription
// policy.
func (s *Service) ShareIgnoreList(ctx context.Context) error {
	path, err := s.writeJSON("ignore-*.json", s.store.IgnoredGroups())
	if err != nil {
		return err
	}
	defer removeFile(path)
	return s.transport.Publish(ctx, s.cfg.Exchange.Receivers.Ignore, exchange.ActionUpdate, exchange.TypeIgnore, nil,
		&exchange.Attachment{Path: path, Encrypt: s.cfg.Exchange.EncryptAttachments})
}

// BackupTables sends every state table to BACKUP, a few seconds apart.
func (s *Service) BackupTables(ctx context.Context) error {
	var errs error
	for i, name := range storage.Tables {
		if i > 0 {
			if err := s.sleep(ctx, backupSpacing); err != nil {
				return err
			}
		}
		err := s.transport.Publish(ctx, []string{exchange.Backup}, exchange.ActionBackup, exchange.TypeData, string(name),
			&exchange.Attachment{Path: s.store.Path(name), Encrypt: s.cfg.Exchange.EncryptAttachments})
		if err != nil {
			errs = fmt.Errorf("backup %s: %w", name, err)
			logger.Warningf("%v", errs)
		}
	}
	return errs
}

const backupSpacing = 5 * time.Second

// ShareBackupStatus tells BACKUP that the node started or stopped.
func (s *Service) ShareBackupStatus(ctx context.Context, typ string) {
	s.publish(ctx, []string{exchange.Backup}, exchange.ActionBackup, exchange.TypeStatus,
		exchange.BackupStatusPayload{Type: typ, Backup: s.cfg.Jobs.Backup})
}
