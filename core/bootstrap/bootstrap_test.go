package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/chatbots/core/config"
	coredatabase "github.com/m3rciful/chatbots/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunFileBackend(t *testing.T) {
	cfg := &coreconfig.Config{Storage: coreconfig.StorageConfig{Backend: coreconfig.StorageFile, Dir: t.TempDir()}}
	res, err := Run(Options{Name: "vilabot", Config: cfg, LoggerInit: noLogger})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer res.Close()
	if res.DB != nil || res.Identity != "vilabot" {
		t.Fatalf("result = %+v", res)
	}
	res.Store.Chat(1).Start()
	if err := res.Store.Save(context.Background(), res.Identity); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestRunIdentityOverride(t *testing.T) {
	cfg := &coreconfig.Config{Storage: coreconfig.StorageConfig{Backend: coreconfig.StorageFile, Dir: t.TempDir(), Identity: "staging"}}
	res, err := Run(Options{Name: "vilabot", Config: cfg, LoggerInit: noLogger})
	if err != nil || res.Identity != "staging" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestRunPostgresConnectFailure(t *testing.T) {
	cfg := &coreconfig.Config{Storage: coreconfig.StorageConfig{Backend: coreconfig.StoragePostgres}}
	boom := errors.New("refused")
	migrated := false
	_, err := Run(Options{
		Name:       "gugubot",
		Config:     cfg,
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom },
		Migrate:    func(coredatabase.Config) error { migrated = true; return nil },
	})
	if !errors.Is(err, boom) || migrated {
		t.Fatalf("err=%v migrated=%v", err, migrated)
	}
}

func TestRunLoggerFailure(t *testing.T) {
	boom := errors.New("bad log dir")
	_, err := Run(Options{Name: "x", Config: &coreconfig.Config{}, LoggerInit: func(*coreconfig.Config) error { return boom }})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
