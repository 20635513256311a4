package persistence

import (
	"context"
	"testing"
)

func TestPostgresPingWithoutPool(t *testing.T) {
	var missing *Postgres
	if err := missing.Ping(context.Background()); err == nil {
		t.Error("nil Postgres Ping returned no error")
	}

	unconfigured := &Postgres{}
	if err := unconfigured.Ping(context.Background()); err == nil {
		t.Error("poolless Postgres Ping returned no error")
	}
}
