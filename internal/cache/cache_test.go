package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memStore struct {
	data map[string][]byte
	err  error
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = data
	return nil
}

type sample struct {
	Bankroll float64 `json:"bankroll"`
	Seed     int64   `json:"seed"`
}

func TestKey(t *testing.T) {
	a, err := Key("sim", sample{100, 42})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, _ := Key("sim", sample{100, 42})
	c, _ := Key("sim", sample{100, 43})

	if a != b {
		t.Errorf("equal values produced different keys: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different values produced the same key")
	}
	if !strings.HasPrefix(a, "sim:") || len(a) != len("sim:")+64 {
		t.Errorf("key = %q, want sim:<sha256 hex>", a)
	}

	if _, err := Key("sim", make(chan int)); err == nil {
		t.Error("unencodable value should fail")
	}
}

func TestJSONRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	s := &memStore{data: map[string][]byte{}}

	var got sample
	ok, err := GetJSON(ctx, s, "k", &got)
	if ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	if err := SetJSON(ctx, s, "k", sample{250, 7}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	ok, err = GetJSON(ctx, s, "k", &got)
	if !ok || err != nil {
		t.Fatalf("GetJSON: ok=%v err=%v", ok, err)
	}
	if got != (sample{250, 7}) {
		t.Errorf("got %+v", got)
	}

	s.data["bad"] = []byte("{")
	if _, err := GetJSON(ctx, s, "bad", &got); err == nil {
		t.Error("corrupt entry should fail to decode")
	}
}

func TestNilStore(t *testing.T) {
	ctx := context.Background()
	var got sample
	if ok, err := GetJSON(ctx, nil, "k", &got); ok || err != nil {
		t.Errorf("nil store GetJSON: ok=%v err=%v", ok, err)
	}
	if err := SetJSON(ctx, nil, "k", got); err != nil {
		t.Errorf("nil store SetJSON: %v", err)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	s := &memStore{err: boom}
	var got sample
	if _, err := GetJSON(context.Background(), s, "k", &got); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestRedisStoreDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	s := NewRedisStore(client, "qk:", 0)
	if s.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultTTL)
	}
	if got := s.key("sim:abc"); got != "qk:sim:abc" {
		t.Errorf("key = %q", got)
	}

	s = NewRedisStore(client, "", 5*time.Minute)
	if s.ttl != 5*time.Minute {
		t.Errorf("ttl = %v, want 5m", s.ttl)
	}
}
