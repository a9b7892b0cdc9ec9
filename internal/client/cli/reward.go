package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
)

func (a *App) listRewards(ctx context.Context) {
	rewards, err := a.repo.Rewards(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(rewards) == 0 {
		fmt.Println("No rewards yet.")
		return
	}
	for _, r := range rewards {
		state := "inactive"
		if r.Active {
			state = "active"
		}
		fmt.Printf("%s  %-30s %5d pts  %s\n", r.ID, r.Title, r.PointsCost, state)
	}
}

func (a *App) addReward(ctx context.Context) {
	title, err := getSimpleText(a.reader, "Enter reward title", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	cost, err := a.promptInt("Enter points cost")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	reward := &models.Reward{ID: uuid.NewString(), Title: title, PointsCost: cost, Active: true}
	if err := a.repo.SaveReward(ctx, reward); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Added reward", reward.ID)
}

func (a *App) editReward(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter reward id", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	rewards, err := a.repo.Rewards(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	var reward *models.Reward
	for i := range rewards {
		if rewards[i].ID == id {
			reward = &rewards[i]
			break
		}
	}
	if reward == nil {
		fmt.Println("No reward with id", id)
		return
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Enter title [%s]", reward.Title), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if title != "" {
		reward.Title = title
	}
	cost, err := getSimpleText(a.reader, fmt.Sprintf("Enter points cost [%d]", reward.PointsCost), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if cost != "" {
		n, err := strconv.Atoi(cost)
		if err != nil {
			fmt.Println("Not a number:", cost)
			return
		}
		reward.PointsCost = n
	}

	if err := a.repo.SaveReward(ctx, reward); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Saved.")
}

func (a *App) deleteReward(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter reward id to delete", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if err := a.repo.DeleteReward(ctx, id); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Deleted.")
}

func (a *App) promptInt(prompt string) (int, error) {
	s, err := getSimpleText(a.reader, prompt, os.Stdout)
	if err != nil {
		return 0, err
	}
	return a.parseInt(s)
}

func (a *App) parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}
