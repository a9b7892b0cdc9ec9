package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if a.tenantID != "" {
		s = a.tenantID + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) Root(ctx context.Context) {
	fmt.Println("Welcome to Canny Carrot CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	a.Login(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.StartBackgroundSync(ctx, a.config.SyncInterval)

	for {
		fmt.Printf("carrot %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: rewards, campaigns, customers, add, edit, delete, sync, status, events, logout, exit")
				fmt.Println("  add|edit|delete take a kind: reward, campaign or customer (e.g. 'add reward')")
			} else {
				fmt.Println("Available commands: login, exit")
			}

		case "login":
			a.Login(ctx)

		case "logout":
			a.Logout(ctx)

		case "rewards":
			a.listRewards(ctx)

		case "campaigns":
			a.listCampaigns(ctx)

		case "customers":
			a.listCustomers(ctx)

		case "add":
			a.dispatchKind(ctx, args, a.addReward, a.addCampaign, a.addCustomer)

		case "edit":
			a.dispatchKind(ctx, args, a.editReward, a.editCampaign, a.editCustomer)

		case "delete":
			a.dispatchKind(ctx, args, a.deleteReward, a.deleteCampaign, a.deleteCustomer)

		case "sync":
			a.sync(ctx)

		case "status":
			a.status(ctx)

		case "events":
			a.events(ctx)

		case "exit", "quit":
			fmt.Println("Bye!")
			return

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func (a *App) dispatchKind(ctx context.Context, args []string, reward, campaign, customer func(context.Context)) {
	if !a.isLoggedIn() {
		fmt.Println("Log in first.")
		return
	}
	if len(args) == 0 {
		fmt.Println("Usage: <command> reward|campaign|customer")
		return
	}
	switch args[0] {
	case "reward":
		reward(ctx)
	case "campaign":
		campaign(ctx)
	case "customer":
		customer(ctx)
	default:
		fmt.Println("Unknown kind:", args[0])
	}
}
