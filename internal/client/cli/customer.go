package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
)

func (a *App) listCustomers(ctx context.Context) {
	customers, err := a.repo.Customers(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(customers) == 0 {
		fmt.Println("No customers yet.")
		return
	}
	for _, c := range customers {
		fmt.Printf("%s  %-25s %-30s %5d pts\n", c.ID, c.Name, c.Email, c.Points)
	}
}

func (a *App) addCustomer(ctx context.Context) {
	name, err := getSimpleText(a.reader, "Enter customer name", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	email, err := getSimpleText(a.reader, "Enter customer email", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	customer := &models.Customer{ID: uuid.NewString(), Name: name, Email: email}
	if err := a.repo.SaveCustomer(ctx, customer); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Added customer", customer.ID)
}

func (a *App) editCustomer(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter customer id", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	customers, err := a.repo.Customers(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	var customer *models.Customer
	for i := range customers {
		if customers[i].ID == id {
			customer = &customers[i]
			break
		}
	}
	if customer == nil {
		fmt.Println("No customer with id", id)
		return
	}

	name, err := getSimpleText(a.reader, fmt.Sprintf("Enter name [%s]", customer.Name), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if name != "" {
		customer.Name = name
	}
	points, err := getSimpleText(a.reader, fmt.Sprintf("Enter points [%d]", customer.Points), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if points != "" {
		n, err := a.parseInt(points)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		customer.Points = n
	}

	if err := a.repo.SaveCustomer(ctx, customer); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Saved.")
}

func (a *App) deleteCustomer(ctx context.Context) {
	id, err := getSimpleText(a.reader, "Enter customer id to delete", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if err := a.repo.DeleteCustomer(ctx, id); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Deleted.")
}
