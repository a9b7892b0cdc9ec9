package cli

import (
	"context"
	"fmt"
)

func (a *App) sync(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Println("Log in first.")
		return
	}

	pushed, err := a.syncer.Push(ctx)
	if err != nil {
		fmt.Println("Push error:", err)
	}
	pulled, err := a.syncer.Pull(ctx, a.tenantID)
	if err != nil {
		fmt.Println("Pull error:", err)
	}
	fmt.Printf("Sync done: %d pushed, %d pulled.\n", pushed, pulled)
}

func (a *App) status(ctx context.Context) {
	profile, err := a.repo.Profile(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if profile == nil {
		fmt.Println("No business data on this device.")
		return
	}
	fmt.Printf("Business: %s (%s)\n", profile.BusinessName, profile.ID)

	meta, err := a.repo.Metadata(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Unsynced changes:", meta.HasUnsyncedChanges)
	if !meta.LastSyncedAt.IsZero() {
		fmt.Println("Last synced:", meta.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !meta.LastDownloadedAt.IsZero() {
		fmt.Println("Last downloaded:", meta.LastDownloadedAt.Local().Format("2006-01-02 15:04:05"))
	}

	pending, err := a.outbox.Len(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Pending pushes:", pending)

	counts, err := a.repo.Counts(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	expected, err := a.journal.Expected(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for col, want := range expected {
		fmt.Printf("%s: %d (expected %d)\n", col, counts[col], want)
	}
}

func (a *App) events(ctx context.Context) {
	events, err := a.journal.Events(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("No events.")
		return
	}
	// newest last, same order they happened
	for _, ev := range events {
		fmt.Printf("%s  %-10s %v\n", ev.At.Local().Format("2006-01-02 15:04:05"), ev.Action, ev.Data)
	}
}
