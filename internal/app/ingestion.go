package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/khoii1/DA-Fitness/internal/catalog"
	"github.com/khoii1/DA-Fitness/internal/user"
)

// Snapshot is the seed file format: a catalog plus the profiles that plan against it.
type Snapshot struct {
	catalog.Snapshot
	Users []user.Profile `json:"users"`
}

// ReadSnapshot decodes a snapshot, rejecting unknown fields.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for i, m := range snap.Meals {
		if m.ID == "" {
			return nil, fmt.Errorf("meal %d has no id", i)
		}
	}
	for i, e := range snap.Exercises {
		if e.ID == "" {
			return nil, fmt.Errorf("exercise %d has no id", i)
		}
	}
	for i, p := range snap.Users {
		if p.UserID == "" {
			return nil, fmt.Errorf("user %d has no id", i)
		}
	}
	return &snap, nil
}

// ImportCatalog loads a snapshot file and upserts its catalog and profiles.
func (a *App) ImportCatalog(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := ReadSnapshot(f)
	if err != nil {
		return err
	}
	if err := a.catalogRepo.Import(ctx, snap.Snapshot); err != nil {
		return err
	}
	if err := a.userRepo.Import(ctx, snap.Users); err != nil {
		return err
	}

	a.log.Info("catalog imported",
		"ingredients", len(snap.Ingredients),
		"exercises", len(snap.Exercises),
		"meals", len(snap.Meals),
		"users", len(snap.Users),
	)
	fmt.Fprintf(a.out, "Imported %d ingredients, %d exercises, %d meals and %d users.\n",
		len(snap.Ingredients), len(snap.Exercises), len(snap.Meals), len(snap.Users))
	return nil
}
