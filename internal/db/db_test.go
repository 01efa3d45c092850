package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: ErrCodeDuplicateEntry, Message: "Duplicate entry 'k1' for key 'uq_idempotency_key'"}

	if !IsDuplicateKey(dup) {
		t.Fatalf("expected duplicate entry to be detected")
	}
	if !IsDuplicateKey(fmt.Errorf("insert message: %w", dup)) {
		t.Fatalf("expected wrapped duplicate entry to be detected")
	}
	if IsDuplicateKey(&mysql.MySQLError{Number: 1213}) {
		t.Fatalf("deadlock is not a duplicate key")
	}
	if IsDuplicateKey(errors.New("boom")) || IsDuplicateKey(nil) {
		t.Fatalf("non mysql errors are not duplicate keys")
	}
}

func TestNewMySQLConnection_EmptyDSN(t *testing.T) {
	if _, err := NewMySQLConnection(config.DatabaseConfig{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestNewRedisClient_Pings(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(config.RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewRedisClient() error: %v", err)
	}
	defer rdb.Close()

	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisClient(config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping error for closed redis")
	}
}
