package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/service"
	"realtime-chat/client/pkg/config"
	"realtime-chat/client/pkg/di"
	"realtime-chat/client/pkg/jwt"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/secrets"

	"github.com/olekukonko/tablewriter"
)

func printSnapshot(ctx context.Context, cfg *config.Config, user models.UserID, w io.Writer) error {
	if cfg.Snapshot.RedisURL == "" {
		return fmt.Errorf("snapshots are only kept across runs with REDIS_URL set")
	}
	if user == "" {
		identity, err := credentialUser(ctx, cfg)
		if err != nil {
			return err
		}
		user = identity
	}

	store, _, closeStore, err := di.NewSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return renderSnapshot(ctx, store, user, w)
}

func credentialUser(ctx context.Context, cfg *config.Config) (models.UserID, error) {
	source, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		Timeout:     cfg.Vault.Timeout,
		MaxRetries:  cfg.Vault.MaxRetries,
		SecretsPath: cfg.Vault.SecretsPath,
		Enabled:     cfg.Vault.Enabled,
	}, logger.GetGlobal())
	if err != nil {
		return "", err
	}
	credential, err := secrets.Credential(ctx, source, cfg.Credential.Key)
	if err != nil {
		return "", err
	}
	if claims, err := jwt.Inspect(credential); err == nil {
		return models.UserID(claims.Identity()), nil
	}
	return "", nil
}

func renderSnapshot(ctx context.Context, store service.SnapshotStore, user models.UserID, w io.Writer) error {
	snapshot, err := store.Load(ctx, models.SnapshotKey(user))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "session %s, taken %s, %d of %d rooms loaded\n\n",
		snapshot.SessionID, snapshot.TakenAt.Format(time.RFC3339), len(snapshot.Rooms), snapshot.RoomCount)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Room", "Title", "Group", "Messages", "Last Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, room := range snapshot.Rooms {
		lastMessage := "-"
		if !room.LastMessageAt.IsZero() {
			lastMessage = room.LastMessageAt.Format(time.RFC3339)
		}
		table.Append([]string{
			room.ID,
			room.Title(),
			strconv.FormatBool(room.IsGroup),
			strconv.Itoa(len(snapshot.Messages[room.ID])),
			lastMessage,
		})
	}
	table.Render()
	return nil
}
