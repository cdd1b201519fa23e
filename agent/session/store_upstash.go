package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrSnapshotNotFound = errors.New("session snapshot not found")

const (
	defaultStoreKeyPrefix = "router:session:"
	maxResponseSizeBytes  = 2 << 20
)

// UpstashRedisConfig is read with the UPSTASH_REDIS prefix. A zero TTL keeps
// snapshots until they are deleted.
type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" split_words:"true" required:"true"`
	Token     string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	KeyPrefix string        `split_words:"true" default:"router:session:"`
	TTL       time.Duration `envconfig:"TTL" default:"24h"`
}

// UpstashRedisStore keeps session snapshots in Upstash Redis through its REST
// API: every command is one POST of a JSON array.
type UpstashRedisStore struct {
	endpoint  string
	token     string
	client    *http.Client
	keyPrefix string
	ttl       time.Duration
}

var _ SnapshotStore = (*UpstashRedisStore)(nil)

type upstashReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig) (*UpstashRedisStore, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("upstash redis ttl must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &UpstashRedisStore{
		endpoint:  endpoint,
		token:     token,
		client:    &http.Client{Timeout: timeout},
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	key, err := snapshotKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	reply, err := s.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(reply.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrSnapshotNotFound
	}
	// GET answers with the stored value as a JSON string.
	var stored string
	if err := json.Unmarshal(result, &stored); err != nil {
		return nil, fmt.Errorf("decode upstash result: %w", err)
	}
	return decodeSnapshot([]byte(stored))
}

func (s *UpstashRedisStore) Save(ctx context.Context, snap *Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	key, err := snapshotKey(s.keyPrefix, snap.SessionID)
	if err != nil {
		return err
	}

	args := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.do(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := snapshotKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, "DEL", key)
	return err
}

func (s *UpstashRedisStore) do(ctx context.Context, args ...any) (*upstashReply, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal upstash command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %v: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstash response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upstash %v: http status=%d body=%s", args[0], resp.StatusCode, raw)
	}

	var reply upstashReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode upstash response: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return &reply, nil
}

// ttlSeconds rounds up so a sub-second TTL never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
