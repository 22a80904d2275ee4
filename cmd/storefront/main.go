// Command storefront is a terminal client for ordering from the cloud kitchen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/yeremiapane/cloud-kitchen/cart"
	"github.com/yeremiapane/cloud-kitchen/config"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/pricing"
	"github.com/yeremiapane/cloud-kitchen/services"
	"github.com/yeremiapane/cloud-kitchen/storefront"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

const usage = `usage: storefront [flags] <command> [args]

commands:
  menu                 list the menu
  cart                 show the cart and totals
  add <menu_id>        add one unit of an item
  remove <menu_id>     take one unit off an item
  delete <menu_id>     drop an item from the cart
  clear                empty the cart
  checkout             place the order
  track <display_id>   follow an order until it is delivered
  orders [scope]       list your orders (active, history or all)
`

type app struct {
	client  *storefront.Client
	storage *cart.BoltStorage
	session *storefront.Session
	retries int
	every   time.Duration
}

func main() {
	cfg, err := config.LoadStorefront()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load config: %v", err)
	}

	home, _ := os.UserHomeDir()
	api := flag.String("api", cfg.APIURL, "cloud kitchen API base URL")
	cartPath := flag.String("cart", filepath.Join(home, ".cloud-kitchen", "cart.db"), "local cart file")
	name := flag.String("name", cfg.CustomerName, "name on the order")
	retries := flag.Int("retries", cfg.CheckoutRetries, "checkout attempts before giving up")
	every := flag.Duration("poll", cfg.TrackPollInterval, "tracking poll interval")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	utils.InitLogger(*logLevel)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := os.MkdirAll(filepath.Dir(*cartPath), 0o700); err != nil {
		utils.ErrorLogger.Fatalf("Failed to create cart directory: %v", err)
	}
	storage, err := cart.OpenBoltStorage(*cartPath)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to open cart: %v", err)
	}
	defer storage.Close()

	guestID, err := storage.GuestID()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to read guest id: %v", err)
	}

	client := storefront.NewClient(*api)
	a := &app{
		client:  client,
		storage: storage,
		session: storefront.NewSession(cart.NewStore(storage), client, guestID, *name),
		retries: *retries,
		every:   *every,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		storage.Close()
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "menu":
		return a.menu(ctx)
	case "cart":
		a.printCart()
		return nil
	case "add", "remove", "delete":
		if len(args) != 1 {
			return fmt.Errorf("%s needs a menu id", cmd)
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid menu id %q", args[0])
		}
		return a.changeCart(ctx, cmd, uint(id))
	case "clear":
		return a.session.Cart.Clear()
	case "checkout":
		return a.checkout(ctx)
	case "track":
		if len(args) != 1 {
			return errors.New("track needs an order id like #ORD-1234")
		}
		return a.track(ctx, args[0])
	case "orders":
		scope := "all"
		if len(args) > 0 {
			scope = args[0]
		}
		return a.orders(ctx, scope)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) menu(ctx context.Context) error {
	items, err := a.client.Menu(ctx)
	if err != nil {
		return err
	}
	category := ""
	for _, item := range items {
		if item.Category != category {
			category = item.Category
			fmt.Printf("\n%s\n", category)
		}
		mark := "veg"
		if !item.Veg {
			mark = "non-veg"
		}
		stock := ""
		if !item.Available {
			stock = " (sold out)"
		}
		fmt.Printf("  %3d  %-32s %10s  %s%s\n", item.ID, item.Name, utils.FormatRupees(item.Price), mark, stock)
	}
	return nil
}

func (a *app) changeCart(ctx context.Context, cmd string, id uint) error {
	var err error
	switch cmd {
	case "add":
		var item *models.MenuItem
		item, err = a.client.MenuItem(ctx, id)
		if err != nil {
			return err
		}
		err = a.session.Cart.AddItem(*item)
	case "remove":
		err = a.session.Cart.RemoveItem(id)
	case "delete":
		err = a.session.Cart.DeleteItem(id)
	}
	if err != nil {
		return err
	}
	a.printCart()
	return nil
}

func (a *app) printCart() {
	lines := a.session.Cart.Lines()
	if len(lines) == 0 {
		fmt.Println("Your cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Printf("  %3d  %-32s x%-3d %10s\n", l.MenuItemID, l.Name, l.Quantity, utils.FormatRupees(l.LineTotal()))
	}
	totals := a.session.Cart.Totals()
	fmt.Printf("\n  Subtotal      %10s\n", utils.FormatRupees(totals.Subtotal))
	if totals.DeliveryFee == 0 {
		fmt.Printf("  Delivery      %10s\n", "FREE")
	} else {
		fmt.Printf("  Delivery      %10s\n", utils.FormatRupees(totals.DeliveryFee))
	}
	fmt.Printf("  Tax (5%%)      %10s\n", utils.FormatRupees(totals.Tax))
	fmt.Printf("  Total         %10s\n", utils.FormatRupees(totals.Total))
	if more := pricing.AmountToFreeDelivery(totals.Subtotal); more > 0 {
		fmt.Printf("\nAdd %s more for free delivery\n", utils.FormatRupees(more))
	}
}

// checkout retries transient failures with the same idempotency key.
func (a *app) checkout(ctx context.Context) error {
	attempts := a.retries
	if attempts < 1 {
		attempts = 1
	}

	var res services.CheckoutResult
	for i := 0; i < attempts; i++ {
		res = a.session.Checkout(ctx)
		switch {
		case res.Outcome == services.CheckoutCommitted:
			fmt.Printf("Order placed: %s (total %s)\n", res.DisplayID(), utils.FormatRupees(res.Order.TotalAmount))
			fmt.Printf("Track it with: storefront track '%s'\n", res.DisplayID())
			return nil
		case models.IsValidationError(res.Err), errors.Is(res.Err, models.ErrMenuItemNotFound):
			return res.Err
		}

		utils.ErrorLogger.Printf("Checkout attempt %d/%d failed: %v", i+1, attempts, res.Err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	if res.Outcome == services.CheckoutHeaderOnlyOrphan {
		return fmt.Errorf("order %s was saved without its items, your cart is kept; run checkout again", res.DisplayID())
	}
	return fmt.Errorf("checkout failed, your cart is kept: %w", res.Err)
}

func (a *app) track(ctx context.Context, displayID string) error {
	detail, err := a.client.TrackOrder(ctx, displayID)
	if err != nil {
		return err
	}
	printTimeline(&detail.Order)
	if detail.Status.IsTerminal() {
		return nil
	}

	done := make(chan struct{})
	var once bool
	last := detail.Status
	tracker := services.NewOrderTracker(a.client.GetOrder, detail.ID, services.PollerOptions{
		Interval: a.every,
		OnUpdate: func(snap services.Snapshot) {
			switch {
			case snap.NotFound:
				fmt.Println("Order no longer exists")
			case snap.Unreachable:
				fmt.Println("Kitchen unreachable, still trying...")
				return
			default:
				order := snap.Order()
				if order.Status != last {
					last = order.Status
					printTimeline(order)
				}
				if !order.Status.IsTerminal() {
					return
				}
			}
			if !once {
				once = true
				close(done)
			}
		},
	})
	tracker.Start(ctx)
	defer tracker.Stop()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func printTimeline(order *models.Order) {
	fmt.Printf("%s  %s\n", order.DisplayID, utils.FormatRupees(order.TotalAmount))
	for i, st := range models.OrderStatuses() {
		mark := "[ ]"
		if i <= order.StepIndex() {
			mark = "[x]"
		}
		fmt.Printf("  %s %s\n", mark, st)
	}
}

func (a *app) orders(ctx context.Context, scope string) error {
	orders, err := a.client.CustomerOrders(ctx, a.session.GuestID, scope)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("  %-10s %-10s %2d items %10s  %s\n", o.DisplayID, o.Status, o.ItemCount(),
			utils.FormatRupees(o.TotalAmount), o.CreatedAt.Local().Format("02 Jan 15:04"))
	}
	return nil
}
