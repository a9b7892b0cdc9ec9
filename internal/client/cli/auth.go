package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and authenticates against the server, then
// runs login reconciliation so the primary slot holds the authenticated
// tenant before anything renders.
//
// When the server is unreachable the device falls back to offline access:
// the resident tenant stays usable without re-authentication, matching the
// repository's design of leaving data in place across logouts.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	tenantID, err := a.remote.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrUnreachable) {
			return a.offlineLogin(ctx)
		}
		fmt.Println("Login failed:", err)
		return err
	}

	out, err := a.reconcile.Reconcile(ctx, tenantID)
	if err != nil {
		fmt.Println("Login reconciliation failed:", err)
		return err
	}

	a.tenantID = tenantID
	a.setMode(ModeOnline)
	if out.Switched {
		fmt.Println("Switched resident business; the previous one was archived on this device.")
	}
	fmt.Printf("Logged in (%s).\n", out.Action)
	return nil
}

// offlineLogin grants access to the resident tenant when the server cannot
// be reached. A device with an empty primary slot has nothing to offer
// offline.
func (a *App) offlineLogin(ctx context.Context) error {
	fmt.Println("Server unreachable, trying offline access...")

	tenantID, err := a.repo.CurrentTenantID(ctx)
	if err != nil {
		return err
	}
	if tenantID == "" {
		fmt.Println("No business data on this device; offline access unavailable.")
		return common.ErrUnreachable
	}

	if err := a.journal.RecordEvent(ctx, models.EventLogin, map[string]any{
		"tenant": tenantID, "offline": true,
	}); err != nil {
		return err
	}

	a.tenantID = tenantID
	a.setMode(ModeOffline)
	fmt.Println("Offline access granted for resident business.")
	return nil
}

// Logout ends the session. Primary data deliberately stays resident for a
// fast re-login; only a logout event is appended.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return nil
	}

	if err := a.journal.RecordEvent(ctx, models.EventLogout, map[string]any{
		"tenant": a.tenantID,
	}); err != nil {
		return err
	}

	a.tenantID = ""
	fmt.Println("Logged out.")
	return nil
}
