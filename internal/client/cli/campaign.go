package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
)

const campaignDateLayout = "2006-01-02"

func (a *App) listCampaigns(ctx context.Context) {
	campaigns, err := a.repo.Campaigns(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(campaigns) == 0 {
		fmt.Println("No campaigns yet.")
		return
	}
	for _, c := range campaigns {
		fmt.Printf("%s  %-30s %s .. %s\n", c.ID, c.Title,
			c.StartsAt.Format(campaignDateLayout), c.EndsAt.Format(campaignDateLayout))
	}
}

func (a *App) addCampaign(ctx context.Context) {
	title, err := getSimpleText(a.reader, "Enter campaign title", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	details, err := getSimpleText(a.reader, "Enter details", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	startsAt, err := a.promptDate("Enter start date (YYYY-MM-DD)")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	endsAt, err := a.promptDate("Enter end date (YYYY-MM-DD)")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	campaign := &models.Campaign{
		ID:       uuid.NewString(),
		Title:    title,
		Details:  details,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}
	if err := a.repo.SaveCampaign(ctx, campaign); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Added campaign", campaign.ID)
}

func (a *App) editCampaign(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter campaign id", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	campaigns, err := a.repo.Campaigns(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	var campaign *models.Campaign
	for i := range campaigns {
		if campaigns[i].ID == id {
			campaign = &campaigns[i]
			break
		}
	}
	if campaign == nil {
		fmt.Println("No campaign with id", id)
		return
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Enter title [%s]", campaign.Title), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if title != "" {
		campaign.Title = title
	}
	details, err := getSimpleText(a.reader, "Enter details (blank keeps current)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if details != "" {
		campaign.Details = details
	}

	if err := a.repo.SaveCampaign(ctx, campaign); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Saved.")
}

func (a *App) deleteCampaign(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter campaign id to delete", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if err := a.repo.DeleteCampaign(ctx, id); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Deleted.")
}

func (a *App) promptDate(prompt string) (time.Time, error) {
	s, err := getSimpleText(a.reader, prompt, os.Stdout)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(campaignDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}
