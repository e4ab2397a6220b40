package db

import (
	"context"
	"testing"
)

func TestNewPoolRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := NewPool(context.Background()); err == nil {
		t.Fatal("Expected error when DATABASE_URL is unset")
	}
}

func TestNewPoolRejectsBadMaxConns(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	for _, raw := range []string{"zero", "0", "-3"} {
		t.Setenv("DB_MAX_CONNS", raw)
		if _, err := NewPool(context.Background()); err == nil {
			t.Errorf("Expected error for DB_MAX_CONNS=%q", raw)
		}
	}
}
