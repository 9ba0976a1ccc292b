package exchange

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/atomic"

	"tg-exchange/internal/crypt"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/platform"
	"tg-exchange/internal/retry"
)

var ErrNoCipher = errors.New("exchange: attachment encryption requested without a password")

// Attachment is a file published together with an envelope.
type Attachment struct {
	Path    string
	Encrypt bool
}

type TransportConfig struct {
	Self              string
	ExchangeChannelID int64
	HideChannelID     int64
	TmpDir            string
}

// Transport publishes envelopes on the exchange channel. When the exchange
// channel stops accepting posts it switches to the hide channel for good and
// announces the switch there.
type Transport struct {
	cfg    TransportConfig
	client platform.Client
	sup    *retry.Supervisor
	cipher *crypt.Cipher
	hidden *atomic.Bool
}

// NewTransport creates a transport. cipher may be nil when attachments are
// never encrypted.
func NewTransport(cfg TransportConfig, client platform.Client, sup *retry.Supervisor, cipher *crypt.Cipher) *Transport {
	return &Transport{
		cfg:    cfg,
		client: client,
		sup:    sup,
		cipher: cipher,
		hidden: atomic.NewBool(false),
	}
}

func (t *Transport) Hidden() bool {
	return t.hidden.Load()
}

func (t *Transport) SetHidden(v bool) {
	if t.hidden.Swap(v) != v {
		logger.Warningf("Hidden mode set to %v", v)
	}
}

func (t *Transport) channel() int64 {
	if t.hidden.Load() && t.cfg.HideChannelID != 0 {
		return t.cfg.HideChannelID
	}
	return t.cfg.ExchangeChannelID
}

// Publish sends an envelope from this node to receivers. This node is never
// a receiver of its own envelopes; publishing to nobody does nothing.
func (t *Transport) Publish(ctx context.Context, receivers []string, action, typ string, data any, att *Attachment) error {
	to := make([]string, 0, len(receivers))
	for _, r := range receivers {
		if r != t.cfg.Self {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return nil
	}

	text, err := Encode(t.cfg.Self, to, action, typ, data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", action, typ, err)
	}

	path := ""
	if att != nil {
		path = att.Path
		if att.Encrypt {
			tmp, err := t.encrypt(att.Path)
			if err != nil {
				publishCount.WithLabelValues(action, typ, "encrypt_failed").Inc()
				return err
			}
			defer os.Remove(tmp)
			path = tmp
		}
	}

	channel := t.channel()
	res := t.send(ctx, channel, text, path, true)
	if res.OK() {
		publishCount.WithLabelValues(action, typ, "ok").Inc()
		return nil
	}
	if res.Kind != retry.Terminal || channel == t.cfg.HideChannelID || t.cfg.HideChannelID == 0 {
		publishCount.WithLabelValues(action, typ, "failed").Inc()
		return fmt.Errorf("publish %s/%s: %w", action, typ, res.Err)
	}

	t.failover(ctx, res.Err)
	res = t.send(ctx, t.cfg.HideChannelID, text, path, true)
	if !res.OK() {
		publishCount.WithLabelValues(action, typ, "failed").Inc()
		return fmt.Errorf("publish %s/%s on hide channel: %w", action, typ, res.Err)
	}
	publishCount.WithLabelValues(action, typ, "ok").Inc()
	return nil
}

// failover enters hidden mode and tells every node to follow.
func (t *Transport) failover(ctx context.Context, cause error) {
	t.hidden.Store(true)
	failoverCount.Inc()
	logger.Warningf("Exchange channel unusable, switching to hide channel: %v", cause)

	notice, err := Encode(t.cfg.Self, []string{Emergency}, ActionBackup, TypeHide, true)
	if err != nil {
		logger.Errorf("Encode hide notice: %v", err)
		return
	}
	if res := t.send(ctx, t.cfg.HideChannelID, notice, "", false); !res.OK() {
		logger.Errorf("Send hide notice failed: %v", res.Err)
	}
}

func (t *Transport) send(ctx context.Context, chatID int64, text, path string, silent bool) retry.Result[int] {
	opts := platform.SendOptions{Silent: silent}
	if path == "" {
		return platform.Call(ctx, t.sup, "exchange.send", func(ctx context.Context) (int, error) {
			return t.client.SendMessage(ctx, chatID, text, opts)
		})
	}
	return platform.Call(ctx, t.sup, "exchange.document", func(ctx context.Context) (int, error) {
		return t.client.SendDocument(ctx, chatID, path, text, opts)
	})
}

func (t *Transport) encrypt(src string) (string, error) {
	if t.cipher == nil {
		return "", ErrNoCipher
	}
	if err := os.MkdirAll(t.cfg.TmpDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(t.cfg.TmpDir, "exchange-*.enc")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	f.Close()

	if err := t.cipher.Encrypt(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("encrypt attachment: %w", err)
	}
	return tmp, nil
}

// Fetch downloads the file attached to a received post into the tmp dir and
// decrypts it when asked. The caller removes the returned file.
func (t *Transport) Fetch(ctx context.Context, fileID string, decrypt bool) (string, error) {
	if fileID == "" {
		return "", errors.New("exchange: post has no attachment")
	}
	if decrypt && t.cipher == nil {
		return "", ErrNoCipher
	}
	if err := os.MkdirAll(t.cfg.TmpDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(t.cfg.TmpDir, "received-*")
	if err != nil {
		return "", err
	}
	raw := f.Name()
	f.Close()

	res := platform.Exec(ctx, t.sup, "exchange.download", func(ctx context.Context) error {
		return t.client.DownloadFile(ctx, fileID, raw)
	})
	if !res.OK() {
		_ = os.Remove(raw)
		return "", fmt.Errorf("download attachment: %w", res.Err)
	}
	if !decrypt {
		return raw, nil
	}
	defer os.Remove(raw)

	plain := raw + ".plain"
	if err := t.cipher.Decrypt(raw, plain); err != nil {
		_ = os.Remove(plain)
		return "", fmt.Errorf("decrypt attachment: %w", err)
	}
	return plain, nil
}
