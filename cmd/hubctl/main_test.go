package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "create-admin", "set-admin"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
}

func TestCreateAdminRequiresEmail(t *testing.T) {
	cmd := newCreateAdminCmd(func(context.Context) (*pgxpool.Pool, error) {
		t.Fatalf("open called unexpectedly")
		return nil, nil
	})
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestMigrateReportsOpenFailure(t *testing.T) {
	cmd := newMigrateCmd(func(context.Context) (*pgxpool.Pool, error) {
		return nil, errors.New("no database: pass --dsn or set APP_DB_DSN")
	})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "no database") {
		t.Fatalf("unexpected error: %v", err)
	}
}
